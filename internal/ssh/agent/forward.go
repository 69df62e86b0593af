package agent

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/devc/devc/internal/common"
	"github.com/devc/devc/internal/container"
	"github.com/devc/devc/internal/proxy"
)

// AgentProxy forwards the host's SSH agent socket into a container. A
// host-side TCP listener accepts connections and proxies them to
// SSH_AUTH_SOCK; inside the container, a socat relay bridges a Unix
// socket to that TCP listener, so no client binary needs to be deployed.
type AgentProxy struct {
	containerID   string
	containerName string
	uid           int
	gid           int

	listener  net.Listener
	port      int
	done      chan struct{}
	wg        sync.WaitGroup
	agentSock string

	socketPath string
}

// NewAgentProxy creates a new SSH agent proxy for the given container.
func NewAgentProxy(containerID, containerName string, uid, gid int) (*AgentProxy, error) {
	agentSock, err := GetUpstreamSocket()
	if err != nil {
		return nil, err
	}

	if err := ValidateSocket(agentSock); err != nil {
		return nil, fmt.Errorf("SSH agent not accessible: %w", err)
	}

	return &AgentProxy{
		containerID:   containerID,
		containerName: containerName,
		uid:           uid,
		gid:           gid,
		agentSock:     agentSock,
		socketPath:    fmt.Sprintf("/tmp/ssh-agent-%d.sock", uid),
		done:          make(chan struct{}),
	}, nil
}

// Start starts the agent proxy.
// Returns the socket path inside the container for SSH_AUTH_SOCK.
func (p *AgentProxy) Start() (string, error) {
	// Start TCP listener on host.
	// On native Linux, bind to the docker bridge so the container can
	// reach us directly. On Docker Desktop, localhost works because of
	// the VM networking and host.docker.internal.
	bindAddr := "127.0.0.1:0"
	if runtime.GOOS == "linux" && !common.IsDockerDesktop() {
		bindAddr = getDockerBridgeIP() + ":0"
	}
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return "", fmt.Errorf("failed to start TCP listener: %w", err)
	}
	p.listener = listener
	p.port = listener.Addr().(*net.TCPAddr).Port

	p.wg.Add(1)
	go p.acceptLoop()

	if err := p.startRelay(); err != nil {
		p.Stop()
		return "", fmt.Errorf("failed to start relay in container: %w", err)
	}
	if err := p.waitForSocket(); err != nil {
		p.Stop()
		return "", fmt.Errorf("relay socket not ready: %w", err)
	}

	return p.socketPath, nil
}

// Stop stops the agent proxy and cleans up.
func (p *AgentProxy) Stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}

	if p.listener != nil {
		_ = p.listener.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	killCmd := fmt.Sprintf("pkill -f 'socat UNIX-LISTEN:%s' ; rm -f %s", p.socketPath, p.socketPath)
	_, _, _ = container.ExecOutput(ctx, p.containerID, []string{"sh", "-c", killCmd}, "root")

	p.wg.Wait()
}

func (p *AgentProxy) acceptLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		if tcpListener, ok := p.listener.(*net.TCPListener); ok {
			_ = tcpListener.SetDeadline(time.Now().Add(100 * time.Millisecond))
		}

		conn, err := p.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-p.done:
				return
			default:
				continue
			}
		}

		p.wg.Add(1)
		go p.handleConnection(conn)
	}
}

func (p *AgentProxy) handleConnection(tcpConn net.Conn) {
	defer p.wg.Done()
	defer tcpConn.Close() //nolint:errcheck // best-effort cleanup

	agentConn, err := net.Dial("unix", p.agentSock)
	if err != nil {
		return
	}
	defer agentConn.Close() //nolint:errcheck // best-effort cleanup

	proxy.BidirectionalCopy(tcpConn, agentConn)
}

// startRelay installs socat in the container (if needed) and starts a
// background Unix-socket-to-TCP relay pointed at the host listener.
func (p *AgentProxy) startRelay() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, _, err := container.ExecOutput(ctx, p.containerID, []string{"which", "socat"}, "root"); err != nil {
		if err := installSocat(ctx, p.containerID); err != nil {
			return err
		}
	}

	var hostAddr string
	if runtime.GOOS == "linux" && !common.IsDockerDesktop() {
		hostAddr = fmt.Sprintf("%s:%d", getDockerBridgeIP(), p.port)
	} else {
		hostAddr = fmt.Sprintf("host.docker.internal:%d", p.port)
	}

	relay := fmt.Sprintf("socat UNIX-LISTEN:%s,fork,mode=600,uid=%d,gid=%d TCP:%s", p.socketPath, p.uid, p.gid, hostAddr)
	_, _, err := container.ExecOutput(ctx, p.containerID, []string{"sh", "-c", "nohup " + relay + " >/tmp/ssh-agent-relay.log 2>&1 & disown"}, "root")
	return err
}

var socatPackageManagers = []struct {
	probe   string
	install string
}{
	{probe: "apt-get", install: "apt-get update -qq && apt-get install -y socat"},
	{probe: "apk", install: "apk add --no-cache socat"},
	{probe: "dnf", install: "dnf install -y socat"},
	{probe: "yum", install: "yum install -y socat"},
}

func installSocat(ctx context.Context, containerID string) error {
	var tried []string
	for _, pm := range socatPackageManagers {
		if _, _, err := container.ExecOutput(ctx, containerID, []string{"which", pm.probe}, "root"); err != nil {
			tried = append(tried, pm.probe)
			continue
		}
		_, _, err := container.ExecOutput(ctx, containerID, []string{"sh", "-c", pm.install}, "root")
		return err
	}
	return fmt.Errorf("no supported package manager found to install socat (tried: %s)", strings.Join(tried, ", "))
}

// waitForSocket waits for the relay socket to appear in the container.
func (p *AgentProxy) waitForSocket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 50; i++ {
		if _, exitCode, err := container.ExecOutput(ctx, p.containerID, []string{"test", "-S", p.socketPath}, ""); err == nil && exitCode == 0 {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for relay socket")
}

// SocketPath returns the socket path inside the container.
func (p *AgentProxy) SocketPath() string {
	return p.socketPath
}

// GetContainerUserIDs gets the UID and GID for a user in a container.
// If user is empty, returns default IDs (1000, 1000).
func GetContainerUserIDs(containerID, user string) (int, int) {
	if user == "" {
		return 1000, 1000
	}

	ctx := context.Background()

	uidOut, exitCode, err := container.ExecOutput(ctx, containerID, []string{"id", "-u", user}, "")
	if err != nil || exitCode != 0 {
		return 1000, 1000
	}
	gidOut, exitCode, err := container.ExecOutput(ctx, containerID, []string{"id", "-g", user}, "")
	if err != nil || exitCode != 0 {
		return 1000, 1000
	}

	uid, gid := 1000, 1000
	if _, err := fmt.Sscanf(strings.TrimSpace(uidOut), "%d", &uid); err != nil {
		return 1000, 1000
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(gidOut), "%d", &gid); err != nil {
		return 1000, 1000
	}

	return uid, gid
}

// getDockerBridgeIP returns the gateway IP of the default Docker bridge
// network, the address containers use to reach the host on native Linux.
func getDockerBridgeIP() string {
	out, err := exec.Command("docker", "network", "inspect", "bridge",
		"-f", "{{(index .IPAM.Config 0).Gateway}}").Output()
	if err != nil {
		return "127.0.0.1"
	}
	ip := strings.TrimSpace(string(out))
	if ip == "" {
		return "127.0.0.1"
	}
	return ip
}
