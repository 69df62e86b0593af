package composeoverride

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devc/devc/internal/features"
)

func TestGenerate_EmptyPropsReturnsNotOK(t *testing.T) {
	_, ok := Generate("web", features.MergedFeatureProperties{})
	assert.False(t, ok)
}

func TestGenerate_CapAddOnly(t *testing.T) {
	yaml, ok := Generate("app", features.MergedFeatureProperties{
		CapAdd: []string{"SYS_PTRACE"},
	})
	require.True(t, ok)
	assert.Equal(t, "services:\n  app:\n    cap_add:\n      - SYS_PTRACE\n", yaml)
}

func TestGenerate_SecurityOptOnly(t *testing.T) {
	yaml, ok := Generate("web", features.MergedFeatureProperties{
		SecurityOpt: []string{"seccomp=unconfined"},
	})
	require.True(t, ok)
	assert.Equal(t, "services:\n  web:\n    security_opt:\n      - seccomp=unconfined\n", yaml)
}

func TestGenerate_InitOnly(t *testing.T) {
	yaml, ok := Generate("svc", features.MergedFeatureProperties{Init: true})
	require.True(t, ok)
	assert.Equal(t, "services:\n  svc:\n    init: true\n", yaml)
}

func TestGenerate_PrivilegedOnly(t *testing.T) {
	yaml, ok := Generate("svc", features.MergedFeatureProperties{Privileged: true})
	require.True(t, ok)
	assert.Equal(t, "services:\n  svc:\n    privileged: true\n", yaml)
}

func TestGenerate_AllProperties(t *testing.T) {
	yaml, ok := Generate("my-service", features.MergedFeatureProperties{
		CapAdd:      []string{"SYS_PTRACE", "NET_ADMIN"},
		SecurityOpt: []string{"seccomp=unconfined", "apparmor=unconfined"},
		Init:        true,
		Privileged:  true,
	})
	require.True(t, ok)
	expected := "services:\n" +
		"  my-service:\n" +
		"    cap_add:\n" +
		"      - SYS_PTRACE\n" +
		"      - NET_ADMIN\n" +
		"    security_opt:\n" +
		"      - seccomp=unconfined\n" +
		"      - apparmor=unconfined\n" +
		"    init: true\n" +
		"    privileged: true\n"
	assert.Equal(t, expected, yaml)
}

func TestGenerate_MountsAndLifecycleNotIncluded(t *testing.T) {
	_, ok := Generate("app", features.MergedFeatureProperties{
		Mounts:           []features.FeatureMount{{Source: "v", Target: "/data", Type: "volume"}},
		OnCreateCommands: []interface{}{"echo hi"},
	})
	assert.False(t, ok)
}
