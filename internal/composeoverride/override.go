// Package composeoverride synthesizes the docker-compose override file
// that carries feature-contributed container properties (cap_add,
// security_opt, init, privileged) into a compose project, additively,
// without touching the user's base compose files.
package composeoverride

import (
	"fmt"
	"strings"

	"github.com/devc/devc/internal/features"
)

// Generate builds the compose override YAML for a service's merged
// feature properties. It returns ("", false) when no feature
// contributes a container property the override can express — mounts
// and lifecycle commands are applied elsewhere and never appear here.
//
// The key order is fixed (cap_add, security_opt, init, privileged) and
// the YAML is built directly rather than via a generic marshaler, so
// the output is byte-stable across Go versions and struct field
// reordering.
func Generate(serviceName string, props features.MergedFeatureProperties) (string, bool) {
	if !props.HasContainerProperties() {
		return "", false
	}

	var b strings.Builder
	b.WriteString("services:\n")
	fmt.Fprintf(&b, "  %s:\n", serviceName)

	if len(props.CapAdd) > 0 {
		b.WriteString("    cap_add:\n")
		for _, cap := range props.CapAdd {
			fmt.Fprintf(&b, "      - %s\n", cap)
		}
	}

	if len(props.SecurityOpt) > 0 {
		b.WriteString("    security_opt:\n")
		for _, opt := range props.SecurityOpt {
			fmt.Fprintf(&b, "      - %s\n", opt)
		}
	}

	if props.Init {
		b.WriteString("    init: true\n")
	}

	if props.Privileged {
		b.WriteString("    privileged: true\n")
	}

	return b.String(), true
}
