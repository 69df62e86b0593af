// Package provider defines the runtime-agnostic interface devc uses to
// realize a container environment. Concrete implementations live in
// internal/cliprovider; this package only holds the contract and the
// value types that cross it.
package provider

import (
	"context"
	"io"
)

// Kind identifies which runtime binary a Provider shells out to.
type Kind string

const (
	KindDockerCLI  Kind = "docker"
	KindPodmanCLI  Kind = "podman"
	KindToolboxCLI Kind = "toolbox"
)

// Provider represents a devcontainer environment that can be built,
// created, started, stopped, and inspected. All operations are
// implemented by shelling out to a runtime binary (see internal/cliprovider);
// nothing in this package talks to a daemon socket directly.
type Provider interface {
	// Pull fetches the images required by the environment without building.
	Pull(ctx context.Context, opts PullOptions) error

	// Build builds the environment images without starting containers.
	Build(ctx context.Context, opts BuildOptions) error

	// Create creates (but does not start) the environment's containers.
	Create(ctx context.Context, opts CreateOptions) (string, error)

	// Start starts an existing, stopped environment.
	Start(ctx context.Context, containerID string) error

	// Stop stops a running environment.
	Stop(ctx context.Context, containerID string, timeout *int) error

	// Remove removes the environment's containers and optionally its resources.
	Remove(ctx context.Context, containerID string, opts RemoveOptions) error

	// Exec runs a one-shot command inside a running container.
	Exec(ctx context.Context, containerID string, opts ExecOptions) ([]byte, error)

	// ExecStreaming runs an interactive command, wiring stdio through opts.
	ExecStreaming(ctx context.Context, containerID string, opts ExecOptions) error

	// Logs returns a stream of the container's log output.
	Logs(ctx context.Context, containerID string, opts LogsOptions) (io.ReadCloser, error)

	// Inspect returns the current runtime state of a container.
	Inspect(ctx context.Context, containerID string) (*ContainerInfo, error)

	// List returns containers matching the given label selector.
	List(ctx context.Context, labels map[string]string) ([]ContainerInfo, error)
}

// PullOptions configures Pull.
type PullOptions struct {
	ImageRef string
	Quiet    bool
}

// BuildOptions configures Build.
type BuildOptions struct {
	ContextDir   string
	DockerfilePath string
	Tags         []string
	BuildArgs    map[string]string
	NoCache      bool
	Pull         bool
	Secrets      map[string]string // secret id -> temp file path, BuildKit secrets
	Progress     io.Writer
}

// CreateOptions configures Create.
type CreateOptions struct {
	Image       string
	Name        string
	Labels      map[string]string
	Env         map[string]string
	Mounts      []string // already-formatted runtime mount specs
	RunArgs     []string
	Entrypoint  []string
	Command     []string
	User        string
	WorkingDir  string
}

// RemoveOptions configures Remove.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// ExecOptions configures Exec / ExecStreaming.
type ExecOptions struct {
	WorkingDir string
	User       string
	Env        []string
	Command    []string
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	TTY        bool
}

// LogsOptions configures Logs.
type LogsOptions struct {
	Follow bool
	Tail   int
}

// ContainerInfo describes the runtime's view of a container, independent
// of devc's own persisted ContainerState.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Status    string
	Running   bool
	Labels    map[string]string
	CreatedAt int64
}
