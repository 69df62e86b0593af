// Package credentials projects host-side developer-agent credentials
// (coding-assistant CLIs) and other secrets into a container without
// ever persisting them in the image or the devcontainer spec itself.
package credentials

// AgentKind identifies a supported coding-assistant CLI preset.
type AgentKind string

const (
	AgentCodex  AgentKind = "codex"
	AgentClaude AgentKind = "claude"
	AgentCursor AgentKind = "cursor"
	AgentGemini AgentKind = "gemini"
)

// AllAgentKinds lists every built-in preset, in a fixed order.
var AllAgentKinds = []AgentKind{AgentCodex, AgentClaude, AgentCursor, AgentGemini}

// SyncPath is a host path synced to a container path beyond the
// agent's main config directory.
type SyncPath struct {
	Host      string
	Container string
}

// AgentPreset carries the built-in defaults for one coding-assistant CLI.
type AgentPreset struct {
	Kind                AgentKind
	DefaultHostConfigPath      string
	DefaultContainerConfigPath string
	DefaultExtraSyncPaths      []SyncPath
	NpmPackage                 string
	RequiredEnvKeys            []string
	BinaryProbe                string
	DefaultInstallCommand      string
}

// PresetFor returns the built-in preset for an agent kind. Callers
// needing a project-specific override should copy the returned value
// and mutate fields rather than construct one from scratch.
func PresetFor(kind AgentKind) AgentPreset {
	switch kind {
	case AgentCodex:
		return AgentPreset{
			Kind:                       AgentCodex,
			DefaultHostConfigPath:      "~/.codex",
			DefaultContainerConfigPath: "~/.codex",
			NpmPackage:                 "@openai/codex",
			BinaryProbe:                "codex",
			DefaultInstallCommand:      "npm install -g @openai/codex",
		}
	case AgentClaude:
		return AgentPreset{
			Kind:                       AgentClaude,
			DefaultHostConfigPath:      "~/.claude",
			DefaultContainerConfigPath: "~/.claude",
			DefaultExtraSyncPaths: []SyncPath{
				{Host: "~/.claude.json", Container: "~/.claude.json"},
			},
			NpmPackage:            "@anthropic-ai/claude-code",
			BinaryProbe:           "claude",
			DefaultInstallCommand: "npm install -g @anthropic-ai/claude-code",
		}
	case AgentCursor:
		return AgentPreset{
			Kind:                       AgentCursor,
			DefaultHostConfigPath:      "~/.cursor",
			DefaultContainerConfigPath: "~/.cursor",
			NpmPackage:                 "@cursor/agent",
			BinaryProbe:                "cursor-agent",
			DefaultInstallCommand:      "npm install -g @cursor/agent",
		}
	case AgentGemini:
		return AgentPreset{
			Kind:                       AgentGemini,
			DefaultHostConfigPath:      "~/.gemini",
			DefaultContainerConfigPath: "~/.gemini",
			NpmPackage:                 "@google/gemini-cli",
			BinaryProbe:                "gemini",
			DefaultInstallCommand:      "npm install -g @google/gemini-cli",
		}
	default:
		return AgentPreset{Kind: kind}
	}
}
