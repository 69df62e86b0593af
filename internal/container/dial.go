package container

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/devc/devc/internal/errs"
)

// DialPort connects to a port listening inside a running container, for
// use as the portforward.Engine dial callback. It resolves the
// container's own IP on the default bridge network via `docker
// inspect` (the same CLI-shelling approach used for SSH-agent-socket
// forwarding) rather than requiring the port to be published.
func DialPort(ctx context.Context, containerID string, port int) (net.Conn, error) {
	ip, err := containerIP(ctx, containerID)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "dial container port").WithPath(fmt.Sprintf("%s:%d", containerID, port))
	}
	return conn, nil
}

func containerIP(ctx context.Context, containerID string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "inspect",
		"-f", "{{.NetworkSettings.IPAddress}}", containerID).Output()
	if err != nil {
		return "", errs.Wrap(errs.ProviderNotFound, err, "inspect container IP").WithPath(containerID)
	}
	ip := strings.TrimSpace(string(out))
	if ip != "" {
		return ip, nil
	}

	// Compose networks attach via a named network rather than the
	// default bridge; NetworkSettings.IPAddress is empty and the
	// address lives under Networks.<name>.IPAddress instead.
	out, err = exec.CommandContext(ctx, "docker", "inspect",
		"-f", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}", containerID).Output()
	if err != nil {
		return "", errs.Wrap(errs.ProviderNotFound, err, "inspect container network IP").WithPath(containerID)
	}
	ip = strings.TrimSpace(string(out))
	if ip == "" {
		return "", errs.New(errs.ProviderNotFound, "container has no network address").WithPath(containerID)
	}
	return ip, nil
}
