// Package ssh provides host-side SSH ergonomics: SSH-agent forwarding
// into a container over a socat relay, and SSH config entries for the
// per-workspace hostnames devc exposes.
package ssh

import (
	"context"
	"os"

	"github.com/devc/devc/internal/ssh/agent"
	"github.com/devc/devc/internal/ssh/host"
)

// IsAgentAvailable reports whether a usable SSH agent socket is present
// on the host and ready to be forwarded.
func IsAgentAvailable() bool {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return false
	}
	return agent.ValidateSocket(sock) == nil
}

// IsDockerDesktop reports whether the active runtime is Docker Desktop.
func IsDockerDesktop() bool {
	return agent.IsDockerDesktop()
}

// HasSSHConfig and RemoveSSHConfig manage the host's SSH config entry
// for a workspace's container, delegating to the host package's
// ~/.ssh/config stanza management. These clean up stanzas left behind
// by older versions; devc no longer writes new ones.
func HasSSHConfig(containerName string) bool {
	return host.HasSSHConfig(containerName)
}

func RemoveSSHConfig(containerName string) error {
	return host.RemoveSSHConfig(containerName)
}

// GetContainerUserIDs resolves the uid/gid of a user inside a running
// container, falling back to 1000/1000 if it cannot be determined.
func GetContainerUserIDs(containerName, user string) (int, int) {
	return agent.GetContainerUserIDs(containerName, user)
}

// AgentProxyOptions configures an AgentProxy.
type AgentProxyOptions struct {
	// SkipDeploy is accepted for API compatibility with older callers;
	// the agent proxy no longer deploys a binary into the container
	// (it provisions a socat relay instead), so this is a no-op.
	SkipDeploy bool
}

// AgentProxy forwards the host's SSH agent socket into a container over
// a socat relay. It is a thin alias over the agent package's
// implementation, kept so existing callers importing the top-level ssh
// package don't need to know about the ssh/agent subpackage split.
type AgentProxy = agent.AgentProxy

// NewAgentProxy creates an agent proxy with default options.
func NewAgentProxy(containerID, containerName string, uid, gid int) (*AgentProxy, error) {
	return agent.NewAgentProxy(containerID, containerName, uid, gid)
}

// NewAgentProxyWithOptions creates an agent proxy for the given container.
func NewAgentProxyWithOptions(containerID, containerName string, uid, gid int, _ AgentProxyOptions) (*AgentProxy, error) {
	return agent.NewAgentProxy(containerID, containerName, uid, gid)
}

// PreDeployAgent is a no-op: agent forwarding now provisions a socat
// relay inside the container on demand (see agent.AgentProxy.Start),
// rather than requiring a binary pre-deployed before lifecycle hooks run.
func PreDeployAgent(ctx context.Context, containerName string) error {
	return nil
}
