package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EffectiveConfig is an AgentPreset after project-level overrides have
// been applied (custom paths, extra env_forward allowlist, etc.).
type EffectiveConfig struct {
	Kind               AgentKind
	HostConfigPath     string
	ContainerConfigPath string
	ExtraSyncPaths     []SyncPath
	NpmPackage         string
	EnvForward         []string
	RequiredEnvKeys    []string
	BinaryProbe        string
	InstallCommand     string
}

// HostValidation reports whether an agent's host-side prerequisites are
// satisfied, plus the environment variables to forward into the
// container.
type HostValidation struct {
	Valid        bool
	Warnings     []string
	ForwardedEnv map[string]string
}

// expandHomePath expands a leading "~/" against $HOME. Paths without
// that prefix are returned unchanged.
func expandHomePath(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// ResolveContainerPath expands a leading "~/" against containerHome.
// Paths without that prefix are returned unchanged.
func ResolveContainerPath(path, containerHome string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	return strings.TrimRight(containerHome, "/") + "/" + rest
}

func isReadable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return false
		}
		defer f.Close()
		_, err = f.Readdirnames(1)
		return err == nil || err.Error() == "EOF"
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// ValidateHostPrerequisites checks that an agent's host config path
// exists and is readable, that every required env key is set, and
// collects the allowlisted env vars to forward. A missing/unreadable
// host config path or a missing required env key is blocking (Valid
// becomes false); a missing extra sync path or unset allowlisted env
// var is warning-only.
func ValidateHostPrerequisites(cfg EffectiveConfig) HostValidation {
	var warnings []string
	forwarded := make(map[string]string)
	blocking := false

	hostPath := expandHomePath(cfg.HostConfigPath)
	switch {
	case !pathExists(hostPath):
		warnings = append(warnings, fmt.Sprintf("host config path is missing: %s", hostPath))
		blocking = true
	case !isReadable(hostPath):
		warnings = append(warnings, fmt.Sprintf("host config path is not readable: %s", hostPath))
		blocking = true
	}

	for _, sp := range cfg.ExtraSyncPaths {
		extraHost := expandHomePath(sp.Host)
		switch {
		case !pathExists(extraHost):
			warnings = append(warnings, fmt.Sprintf("extra host sync path is missing: %s", extraHost))
		case !isReadable(extraHost):
			warnings = append(warnings, fmt.Sprintf("extra host sync path is not readable: %s", extraHost))
		}
	}

	for _, key := range cfg.RequiredEnvKeys {
		v, ok := os.LookupEnv(key)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("required host env var is missing: %s", key))
			blocking = true
			continue
		}
		forwarded[key] = v
	}

	for _, key := range cfg.EnvForward {
		if _, already := forwarded[key]; already {
			continue
		}
		if v, ok := os.LookupEnv(key); ok {
			forwarded[key] = v
		} else {
			warnings = append(warnings, fmt.Sprintf("allowlisted env var not found: %s", key))
		}
	}

	return HostValidation{Valid: !blocking, Warnings: warnings, ForwardedEnv: forwarded}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
