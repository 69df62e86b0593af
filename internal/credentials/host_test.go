package credentials

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContainerPath(t *testing.T) {
	assert.Equal(t, "/home/vscode/.codex", ResolveContainerPath("~/.codex", "/home/vscode"))
	assert.Equal(t, "/etc/codex", ResolveContainerPath("/etc/codex", "/home/vscode"))
}

func TestValidateHostPrerequisites_MissingPath(t *testing.T) {
	t.Setenv("DEVC_TEST_ENV_MISSING", "")
	os.Unsetenv("DEVC_TEST_ENV_MISSING")
	os.Unsetenv("DEVC_TEST_REQ_ENV_MISSING")

	cfg := EffectiveConfig{
		Kind:                AgentCodex,
		HostConfigPath:      "/tmp/devc-definitely-missing-agent-dir",
		ContainerConfigPath: "/home/vscode/.codex",
		NpmPackage:          "@openai/codex",
		EnvForward:          []string{"DEVC_TEST_ENV_MISSING"},
		RequiredEnvKeys:     []string{"DEVC_TEST_REQ_ENV_MISSING"},
		BinaryProbe:         "codex",
		InstallCommand:      "echo install",
	}

	validation := ValidateHostPrerequisites(cfg)
	require.False(t, validation.Valid)
	assertContains(t, validation.Warnings, "host config path is missing")
	assertContains(t, validation.Warnings, "required host env var is missing")
}

func TestValidateHostPrerequisites_AllPresent(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEVC_TEST_REQUIRED", "value")

	cfg := EffectiveConfig{
		Kind:                AgentCodex,
		HostConfigPath:      dir,
		ContainerConfigPath: "~/.codex",
		RequiredEnvKeys:     []string{"DEVC_TEST_REQUIRED"},
	}

	validation := ValidateHostPrerequisites(cfg)
	require.True(t, validation.Valid)
	assert.Equal(t, "value", validation.ForwardedEnv["DEVC_TEST_REQUIRED"])
}

func assertContains(t *testing.T, warnings []string, substr string) {
	t.Helper()
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return
		}
	}
	t.Fatalf("expected a warning containing %q, got %v", substr, warnings)
}

func TestAllPresetsHaveDefaults(t *testing.T) {
	for _, kind := range AllAgentKinds {
		preset := PresetFor(kind)
		assert.Equal(t, kind, preset.Kind)
		assert.NotEmpty(t, preset.DefaultHostConfigPath)
		assert.NotEmpty(t, preset.DefaultContainerConfigPath)
		assert.NotEmpty(t, preset.BinaryProbe)
		assert.NotEmpty(t, preset.DefaultInstallCommand)
		if kind == AgentClaude {
			assert.NotEmpty(t, preset.DefaultExtraSyncPaths, "claude must include extra sync path(s)")
		}
	}
}
