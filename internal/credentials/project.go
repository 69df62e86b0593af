package credentials

import "fmt"

// MountSpec is a single read-only bind mount from a host path into the
// container, with an optional SELinux relabel suffix — the same shape
// the SSH-agent-socket mount uses for its own host-to-container volume
// projection.
type MountSpec struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// VolumeSpec renders the runtime CLI volume argument for this mount.
func (m MountSpec) VolumeSpec(selinuxEnforcing bool) string {
	spec := fmt.Sprintf("%s:%s", m.HostPath, m.ContainerPath)
	if m.ReadOnly {
		spec += ":ro"
	}
	if selinuxEnforcing {
		spec += ",Z"
	}
	return spec
}

// Projection is what credentials.Project produces for a single agent:
// the mounts to attach and the environment to inject, ready to be
// merged into provider.CreateOptions.
type Projection struct {
	Mounts []MountSpec
	Env    map[string]string
}

// Project builds the mount and environment set for one validated agent
// config. containerHome resolves any "~/" in ContainerConfigPath /
// ExtraSyncPaths' container side. The host config directory is always
// mounted read-only: devc never needs to write back into an agent's
// host credential store.
func Project(cfg EffectiveConfig, containerHome string, validation HostValidation) Projection {
	proj := Projection{Env: make(map[string]string)}

	hostPath := expandHomePath(cfg.HostConfigPath)
	containerPath := ResolveContainerPath(cfg.ContainerConfigPath, containerHome)
	proj.Mounts = append(proj.Mounts, MountSpec{
		HostPath:      hostPath,
		ContainerPath: containerPath,
		ReadOnly:      true,
	})

	for _, sp := range cfg.ExtraSyncPaths {
		proj.Mounts = append(proj.Mounts, MountSpec{
			HostPath:      expandHomePath(sp.Host),
			ContainerPath: ResolveContainerPath(sp.Container, containerHome),
			ReadOnly:      true,
		})
	}

	for k, v := range validation.ForwardedEnv {
		proj.Env[k] = v
	}

	return proj
}
