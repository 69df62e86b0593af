package portforward

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/devc/devc/internal/provider"
)

// Discover lists TCP ports currently listening inside a container. It
// tries progressively less structured probes, mirroring the
// exec.Command-shelling style the rest of this codebase uses to reach
// into a container: `ss` first (fast, structured), then `netstat`, then
// a raw /proc/net/tcp scan as a last resort on minimal images that have
// neither tool installed.
func Discover(ctx context.Context, p provider.Provider, containerID string) ([]DetectedPort, error) {
	if out, err := p.Exec(ctx, containerID, provider.ExecOptions{
		Command: []string{"ss", "-H", "-tlnp"},
	}); err == nil {
		if ports := parseSS(containerID, string(out)); len(ports) > 0 {
			return ports, nil
		}
	}

	if out, err := p.Exec(ctx, containerID, provider.ExecOptions{
		Command: []string{"netstat", "-tlnp"},
	}); err == nil {
		if ports := parseNetstat(containerID, string(out)); len(ports) > 0 {
			return ports, nil
		}
	}

	out, err := p.Exec(ctx, containerID, provider.ExecOptions{
		Command: []string{"cat", "/proc/net/tcp"},
	})
	if err != nil {
		return nil, fmt.Errorf("no port discovery method available in container: %w", err)
	}
	return parseProcNetTCP(containerID, string(out)), nil
}

// parseSS parses `ss -H -tlnp` output, e.g.:
// LISTEN 0 128 0.0.0.0:8080 0.0.0.0:* users:(("node",pid=1,fd=20))
func parseSS(containerID, out string) []DetectedPort {
	var ports []DetectedPort
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[0] != "LISTEN" {
			continue
		}
		local := fields[3]
		port, ok := lastPort(local)
		if !ok {
			continue
		}
		ports = append(ports, DetectedPort{
			ContainerID: containerID,
			Port:        port,
			Protocol:    "tcp",
			Process:     processName(line),
		})
	}
	return ports
}

// parseNetstat parses `netstat -tlnp` output, e.g.:
// tcp 0 0 0.0.0.0:8080 0.0.0.0:* LISTEN 1/node
func parseNetstat(containerID, out string) []DetectedPort {
	var ports []DetectedPort
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 || !strings.HasPrefix(fields[0], "tcp") || fields[5] != "LISTEN" {
			continue
		}
		port, ok := lastPort(fields[3])
		if !ok {
			continue
		}
		ports = append(ports, DetectedPort{
			ContainerID: containerID,
			Port:        port,
			Protocol:    "tcp",
			Process:     processName(line),
		})
	}
	return ports
}

// parseProcNetTCP parses /proc/net/tcp's hex local_address:port field for
// sockets in the LISTEN state (st == 0A).
func parseProcNetTCP(containerID, out string) []DetectedPort {
	var ports []DetectedPort
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[3] != "0A" {
			continue
		}
		parts := strings.Split(fields[1], ":")
		if len(parts) != 2 {
			continue
		}
		portVal, err := strconv.ParseInt(parts[1], 16, 32)
		if err != nil {
			continue
		}
		ports = append(ports, DetectedPort{
			ContainerID: containerID,
			Port:        int(portVal),
			Protocol:    "tcp",
		})
	}
	return ports
}

func lastPort(addr string) (int, bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0, false
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0, false
	}
	return port, true
}

func processName(line string) string {
	idx := strings.Index(line, "((\"")
	if idx < 0 {
		return ""
	}
	rest := line[idx+3:]
	end := strings.Index(rest, "\"")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// socatPackageManagers maps a package manager binary to the install
// command devc runs inside the container to provision socat, the relay
// helper used when the container has no devc-agent binary baked in.
var socatPackageManagers = []struct {
	probe   string
	install []string
}{
	{probe: "apt-get", install: []string{"apt-get", "update", "-qq", "&&", "apt-get", "install", "-y", "socat"}},
	{probe: "apk", install: []string{"apk", "add", "--no-cache", "socat"}},
	{probe: "dnf", install: []string{"dnf", "install", "-y", "socat"}},
	{probe: "yum", install: []string{"yum", "install", "-y", "socat"}},
}

// SocatInstalled probes whether socat is already on PATH inside the container.
func SocatInstalled(ctx context.Context, p provider.Provider, containerID string) bool {
	_, err := p.Exec(ctx, containerID, provider.ExecOptions{Command: []string{"which", "socat"}})
	return err == nil
}

// InstallSocat picks the first available package manager inside the
// container and uses it to install socat. Returns an error naming every
// package manager probe that failed if none are available.
func InstallSocat(ctx context.Context, p provider.Provider, containerID string) error {
	var tried []string
	for _, pm := range socatPackageManagers {
		if _, err := p.Exec(ctx, containerID, provider.ExecOptions{Command: []string{"which", pm.probe}}); err != nil {
			tried = append(tried, pm.probe)
			continue
		}
		_, err := p.Exec(ctx, containerID, provider.ExecOptions{
			Command: append([]string{"sh", "-c"}, strings.Join(pm.install, " ")),
		})
		return err
	}
	return fmt.Errorf("no supported package manager found to install socat (tried: %s)", strings.Join(tried, ", "))
}
