package container

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/devc/devc/internal/provider"
)

// ProviderAdapter exposes a *Docker as a provider.Provider, satisfying the
// runtime-agnostic contract internal/lifecycle and internal/statestore
// are built against. The Docker CLI shelling underneath is unchanged;
// this is purely a signature adapter.
type ProviderAdapter struct {
	docker *Docker
	kind   provider.Kind
}

// NewProviderAdapter wraps an existing *Docker client.
func NewProviderAdapter(d *Docker) *ProviderAdapter {
	return &ProviderAdapter{docker: d, kind: provider.KindDockerCLI}
}

func (a *ProviderAdapter) Pull(ctx context.Context, opts provider.PullOptions) error {
	return a.docker.PullImageWithProgress(ctx, opts.ImageRef, nil)
}

func (a *ProviderAdapter) Build(ctx context.Context, opts provider.BuildOptions) error {
	tag := ""
	if len(opts.Tags) > 0 {
		tag = opts.Tags[0]
	}
	return a.docker.BuildImage(ctx, ImageBuildOptions{
		Tag:        tag,
		Dockerfile: opts.DockerfilePath,
		Context:    opts.ContextDir,
		Args:       opts.BuildArgs,
		Stdout:     opts.Progress,
		Stderr:     opts.Progress,
	})
}

func (a *ProviderAdapter) Create(ctx context.Context, opts provider.CreateOptions) (string, error) {
	env := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}
	return a.docker.CreateContainer(ctx, CreateContainerOptions{
		Image:           opts.Image,
		Name:            opts.Name,
		WorkspaceFolder: opts.WorkingDir,
		Labels:          opts.Labels,
		Env:             env,
		RunArgs:         opts.RunArgs,
		Entrypoint:      opts.Entrypoint,
		Cmd:             opts.Command,
		User:            opts.User,
	})
}

func (a *ProviderAdapter) Start(ctx context.Context, containerID string) error {
	return a.docker.StartContainer(ctx, containerID)
}

func (a *ProviderAdapter) Stop(ctx context.Context, containerID string, timeout *int) error {
	var d *time.Duration
	if timeout != nil {
		t := time.Duration(*timeout) * time.Second
		d = &t
	}
	return a.docker.StopContainer(ctx, containerID, d)
}

func (a *ProviderAdapter) Remove(ctx context.Context, containerID string, opts provider.RemoveOptions) error {
	return a.docker.RemoveContainer(ctx, containerID, opts.Force, opts.RemoveVolumes)
}

func (a *ProviderAdapter) Exec(ctx context.Context, containerID string, opts provider.ExecOptions) ([]byte, error) {
	return a.docker.SimpleExecInContainer(ctx, containerID, SimpleExecOptions{
		Cmd:  opts.Command,
		User: opts.User,
	})
}

func (a *ProviderAdapter) ExecStreaming(ctx context.Context, containerID string, opts provider.ExecOptions) error {
	_, err := Exec(ctx, ExecConfig{
		ContainerID: containerID,
		Cmd:         opts.Command,
		WorkingDir:  opts.WorkingDir,
		User:        opts.User,
		Env:         opts.Env,
		Stdin:       opts.Stdin,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
		TTY:         opts.TTY,
	})
	return err
}

func (a *ProviderAdapter) Logs(ctx context.Context, containerID string, opts provider.LogsOptions) (io.ReadCloser, error) {
	tail := "all"
	if opts.Tail > 0 {
		tail = strconv.Itoa(opts.Tail)
	}
	return a.docker.GetLogs(ctx, containerID, LogsOptions{Follow: opts.Follow, Tail: tail})
}

func (a *ProviderAdapter) Inspect(ctx context.Context, containerID string) (*provider.ContainerInfo, error) {
	details, err := a.docker.InspectContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return &provider.ContainerInfo{
		ID:      details.ID,
		Name:    details.Name,
		Image:   details.Image,
		Status:  details.State,
		Running: details.Running,
		Labels:  details.Labels,
	}, nil
}

func (a *ProviderAdapter) List(ctx context.Context, labels map[string]string) ([]provider.ContainerInfo, error) {
	summaries, err := a.docker.ListContainersWithLabels(ctx, labels)
	if err != nil {
		return nil, err
	}
	infos := make([]provider.ContainerInfo, 0, len(summaries))
	for _, s := range summaries {
		infos = append(infos, provider.ContainerInfo{
			ID:      s.ID,
			Name:    s.Name,
			Status:  s.State,
			Running: s.Running,
			Labels:  s.Labels,
		})
	}
	return infos, nil
}

var _ provider.Provider = (*ProviderAdapter)(nil)
