// Package service provides high-level orchestration for devcontainer environments.
// It abstracts the differences between compose and single-container runners,
// and coordinates config loading, state management, and lifecycle hooks.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/devc/devc/internal/compose"
	"github.com/devc/devc/internal/config"
	"github.com/devc/devc/internal/container"
	"github.com/devc/devc/internal/docker"
	"github.com/devc/devc/internal/features"
	"github.com/devc/devc/internal/lifecycle"
	"github.com/devc/devc/internal/portforward"
	"github.com/devc/devc/internal/provider"
	runnerPkg "github.com/devc/devc/internal/runner"
	"github.com/devc/devc/internal/single"
	"github.com/devc/devc/internal/ssh"
	"github.com/devc/devc/internal/state"
	"github.com/devc/devc/internal/statestore"
	"github.com/devc/devc/internal/ui"
)

// EnvironmentService orchestrates devcontainer environment operations.
type EnvironmentService struct {
	dockerClient  *docker.Client
	stateMgr      *state.Manager
	workspacePath string
	configPath    string // optional override
	verbose       bool

	// provider, stateStore and forwardEngine back the spec's provider-
	// agnostic lifecycle, ContainerState persistence, and port-forwarding
	// engine. provider is nil when the CLI-shelling Docker adapter can't
	// be constructed (no docker binary on PATH); every use below is
	// nil-checked and degrades to the pre-existing label-based state.Manager
	// behavior rather than failing Up/Down.
	provider      provider.Provider
	stateStore    *statestore.Store
	forwardEngine *portforward.Engine
}

// NewEnvironmentService creates a new environment service.
func NewEnvironmentService(dockerClient *docker.Client, workspacePath, configPath string, verbose bool) *EnvironmentService {
	s := &EnvironmentService{
		dockerClient:  dockerClient,
		stateMgr:      state.NewManager(dockerClient),
		workspacePath: workspacePath,
		configPath:    configPath,
		verbose:       verbose,
		forwardEngine: portforward.New(container.DialPort),
	}

	if cliDocker, err := container.NewDocker(); err == nil {
		s.provider = container.NewProviderAdapter(cliDocker)
	}

	if store, err := statestore.New(filepath.Join(stateDir(), "containers")); err == nil {
		s.stateStore = store
	} else {
		ui.Warning("container state store unavailable, falling back to label-based state only: %v", err)
	}

	return s
}

// stateDir returns the root directory for devc's persisted
// ContainerState records, honoring $DEVC_STATE_DIR for tests and
// non-default layouts, and defaulting to ~/.devc/state otherwise.
func stateDir() string {
	if dir := os.Getenv("DEVC_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "devc-state")
	}
	return filepath.Join(home, ".devc", "state")
}

// EnvironmentInfo contains resolved environment configuration.
type EnvironmentInfo struct {
	Config      *config.DevcontainerConfig
	ConfigPath  string
	DcxConfig   *config.DcxConfig
	ProjectName string
	EnvKey      string
	ConfigHash  string
}

// LoadEnvironmentInfo loads and validates the environment configuration.
func (s *EnvironmentService) LoadEnvironmentInfo() (*EnvironmentInfo, error) {
	// Load devcontainer configuration
	cfg, cfgPath, err := config.Load(s.workspacePath, s.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if s.verbose {
		fmt.Printf("Loaded configuration from: %s\n", cfgPath)
	}

	// Load dcx.json configuration (optional)
	dcxCfg, err := config.LoadDcxConfig(s.workspacePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load dcx.json: %w", err)
	}

	// Get project name from dcx.json
	var projectName string
	if dcxCfg != nil && dcxCfg.Name != "" {
		projectName = state.SanitizeProjectName(dcxCfg.Name)
		if s.verbose {
			fmt.Printf("Project name: %s\n", projectName)
		}
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Compute identifiers
	envKey := state.ComputeEnvKey(s.workspacePath)
	configHash, err := config.ComputeHash(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to compute config hash: %w", err)
	}

	if s.verbose {
		fmt.Printf("Env key: %s\n", envKey)
		fmt.Printf("Config hash: %s\n", configHash[:12])
	}

	return &EnvironmentInfo{
		Config:      cfg,
		ConfigPath:  cfgPath,
		DcxConfig:   dcxCfg,
		ProjectName: projectName,
		EnvKey:      envKey,
		ConfigHash:  configHash,
	}, nil
}

// GetState returns the current state of the environment.
func (s *EnvironmentService) GetState(ctx context.Context, info *EnvironmentInfo) (state.State, *state.ContainerInfo, error) {
	return s.stateMgr.GetStateWithProjectAndHash(ctx, info.ProjectName, info.EnvKey, info.ConfigHash)
}

// GetStateBasic returns the current state without hash checking.
func (s *EnvironmentService) GetStateBasic(ctx context.Context, projectName, envKey string) (state.State, *state.ContainerInfo, error) {
	return s.stateMgr.GetStateWithProject(ctx, projectName, envKey)
}

// CreateRunner creates the appropriate runner based on configuration.
func (s *EnvironmentService) CreateRunner(info *EnvironmentInfo) (runnerPkg.Environment, error) {
	if info.Config.IsComposePlan() {
		r, err := compose.NewRunner(
			s.dockerClient,
			s.workspacePath,
			info.ConfigPath,
			info.Config,
			info.ProjectName,
			info.EnvKey,
			info.ConfigHash,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create compose runner: %w", err)
		}
		return r, nil
	}

	if info.Config.IsSinglePlan() {
		r := single.NewRunner(
			s.dockerClient,
			s.workspacePath,
			info.ConfigPath,
			info.Config,
			info.ProjectName,
			info.EnvKey,
			info.ConfigHash,
		)
		return r, nil
	}

	return nil, fmt.Errorf("invalid configuration: no build plan detected")
}

// UpOptions configures the Up operation.
type UpOptions struct {
	Recreate        bool
	Rebuild         bool
	Pull            bool
	SSHAgentEnabled bool
}

// Up brings up the environment, building if necessary.
func (s *EnvironmentService) Up(ctx context.Context, opts UpOptions) error {
	info, err := s.LoadEnvironmentInfo()
	if err != nil {
		return err
	}

	// Reconcile persisted ContainerState against the runtime's own view
	// before trusting anything we're about to read (spec §8.8: no
	// Running record is ever garbage-collected, only Stopped/Error past
	// the grace period with no matching live container).
	if s.stateStore != nil && s.provider != nil {
		if err := statestore.ReconcileAll(ctx, s.provider, s.stateStore); err != nil {
			ui.Verbose("state reconciliation skipped: %v", err)
		}
	}

	// Check current state
	currentState, _, err := s.GetState(ctx, info)
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}

	if s.verbose {
		fmt.Printf("Current state: %s\n", currentState)
	}

	// Handle state transitions
	var isNewEnvironment bool
	var needsRebuild bool

	switch currentState {
	case state.StateRunning:
		if !opts.Recreate && !opts.Rebuild {
			fmt.Println("Environment is already running")
			return nil
		}
		fallthrough
	case state.StateStale, state.StateBroken:
		if s.verbose {
			fmt.Println("Removing existing environment...")
		}
		if err := s.Down(ctx, info, DownOptions{RemoveVolumes: true}); err != nil {
			return fmt.Errorf("failed to remove existing environment: %w", err)
		}
		needsRebuild = true
		fallthrough
	case state.StateAbsent:
		if err := s.create(ctx, info, opts.Rebuild || needsRebuild, opts.Pull); err != nil {
			return err
		}
		isNewEnvironment = true
	case state.StateCreated:
		if err := s.start(ctx, info); err != nil {
			return err
		}
	}

	// Pre-deploy agent binary before lifecycle hooks if SSH agent is enabled
	if opts.SSHAgentEnabled {
		_, containerInfo, err := s.stateMgr.GetStateWithProject(ctx, info.ProjectName, info.EnvKey)
		if err == nil && containerInfo != nil {
			fmt.Println("Installing dcx agent...")
			if err := ssh.PreDeployAgent(ctx, containerInfo.Name); err != nil {
				return fmt.Errorf("failed to install dcx agent: %w", err)
			}
		}
	}

	// Run lifecycle hooks
	if err := s.runLifecycleHooks(ctx, info, isNewEnvironment, opts.SSHAgentEnabled); err != nil {
		return fmt.Errorf("lifecycle hooks failed: %w", err)
	}

	_, containerInfo, err := s.stateMgr.GetStateWithProject(ctx, info.ProjectName, info.EnvKey)
	if err == nil && containerInfo != nil {
		s.saveContainerState(info, containerInfo, isNewEnvironment)
		s.syncPortForwards(ctx, info, containerInfo)
	}

	fmt.Println("Environment is ready")
	return nil
}

// saveContainerState persists the environment's ContainerState record
// (spec §3), keyed by the workspace's envKey so that, per the data
// model's invariant, at most one non-Error record exists per workspace.
func (s *EnvironmentService) saveContainerState(info *EnvironmentInfo, containerInfo *state.ContainerInfo, isNew bool) {
	if s.stateStore == nil {
		return
	}
	st, err := s.stateStore.Load(info.EnvKey)
	if err != nil {
		ui.Verbose("container state load skipped: %v", err)
	}
	if st == nil {
		st = &statestore.ContainerState{ID: info.EnvKey}
		if isNew {
			st.CreatedAt = time.Now()
		}
	}
	st.WorkspaceHash = info.EnvKey
	st.WorkspacePath = s.workspacePath
	st.ConfigHash = info.ConfigHash
	st.ProviderContainerID = containerInfo.ID
	st.Status = statestore.StatusRunning
	st.ErrorReason = ""
	if err := s.stateStore.Save(st); err != nil {
		ui.Verbose("container state save skipped: %v", err)
	}
}

// syncPortForwards discovers ports currently listening inside the
// container and applies each one's configured onAutoForward action
// (spec §4.5), relaying through forwardEngine for anything that isn't
// Ignore.
func (s *EnvironmentService) syncPortForwards(ctx context.Context, info *EnvironmentInfo, containerInfo *state.ContainerInfo) {
	if s.forwardEngine == nil || s.provider == nil {
		return
	}

	detected, err := portforward.Discover(ctx, s.provider, containerInfo.ID)
	if err != nil {
		ui.Verbose("port discovery skipped: %v", err)
		return
	}

	for _, dp := range detected {
		if dp.Protocol != "" && dp.Protocol != "tcp" {
			continue
		}
		action := autoForwardAction(info.Config, dp.Port)
		if action == portforward.ActionIgnore {
			continue
		}
		if s.forwardEngine.IsAutoForwarded(containerInfo.ID, dp.Port) {
			continue
		}

		addr, err := s.forwardEngine.Forward(ctx, containerInfo.ID, dp.Port)
		if err != nil {
			ui.Verbose("forward port %d skipped: %v", dp.Port, err)
			continue
		}

		openBrowser, notify := s.forwardEngine.HandleAutoForward(containerInfo.ID, dp.Port, action)
		if notify {
			ui.Info("Forwarding port %d -> %s", dp.Port, addr)
		}
		if openBrowser {
			if err := ui.OpenBrowser("http://" + addr); err != nil {
				ui.Verbose("open browser skipped: %v", err)
			}
		}
	}
}

// autoForwardAction resolves the configured onAutoForward behavior for
// a port, defaulting to Notify per the devcontainer spec when unset.
func autoForwardAction(cfg *config.DevcontainerConfig, port int) portforward.AutoForwardAction {
	if cfg == nil {
		return portforward.ActionNotify
	}
	attr := cfg.GetPortAttribute(strconv.Itoa(port))
	if attr == nil {
		return portforward.ActionNotify
	}
	switch attr.OnAutoForward {
	case "silent":
		return portforward.ActionSilent
	case "openBrowser":
		return portforward.ActionOpenBrowser
	case "openBrowserOnce":
		return portforward.ActionOpenBrowserOnce
	case "ignore":
		return portforward.ActionIgnore
	default:
		return portforward.ActionNotify
	}
}

// create creates a new environment.
func (s *EnvironmentService) create(ctx context.Context, info *EnvironmentInfo, forceRebuild, forcePull bool) error {
	envRunner, err := s.CreateRunner(info)
	if err != nil {
		return err
	}

	if info.Config.IsComposePlan() {
		fmt.Println("Creating compose-based environment...")
	} else {
		fmt.Println("Creating single-container environment...")
	}

	return envRunner.Up(ctx, runnerPkg.UpOptions{
		Build:   forceRebuild,
		Rebuild: forceRebuild,
		Pull:    forcePull,
	})
}

// start starts an existing stopped environment.
func (s *EnvironmentService) start(ctx context.Context, info *EnvironmentInfo) error {
	fmt.Println("Starting existing containers...")

	envRunner, err := s.CreateRunner(info)
	if err != nil {
		return err
	}

	return envRunner.Start(ctx)
}

// DownOptions configures the Down operation.
type DownOptions struct {
	RemoveVolumes bool
	RemoveOrphans bool
}

// Down removes the environment.
func (s *EnvironmentService) Down(ctx context.Context, info *EnvironmentInfo, opts DownOptions) error {
	currentState, containerInfo, err := s.stateMgr.GetStateWithProject(ctx, info.ProjectName, info.EnvKey)
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}

	if currentState == state.StateAbsent {
		fmt.Println("No environment found")
		return nil
	}

	// Handle based on plan type
	if containerInfo != nil && containerInfo.Plan == docker.PlanSingle {
		if containerInfo.Running {
			if err := s.dockerClient.StopContainer(ctx, containerInfo.ID, nil); err != nil {
				return fmt.Errorf("failed to stop container: %w", err)
			}
		}
		if err := s.dockerClient.RemoveContainer(ctx, containerInfo.ID, true, opts.RemoveVolumes); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}
	} else {
		actualProject := containerInfo.ComposeProject
		if actualProject == "" {
			actualProject = info.ProjectName
		}
		r := compose.NewRunnerFromEnvKey(s.workspacePath, actualProject, info.EnvKey)
		if err := r.Down(ctx, runnerPkg.DownOptions{
			RemoveVolumes: opts.RemoveVolumes,
			RemoveOrphans: opts.RemoveOrphans,
		}); err != nil {
			return fmt.Errorf("failed to remove environment: %w", err)
		}
	}

	// Clean up SSH config entry
	if containerInfo != nil {
		ssh.RemoveSSHConfig(containerInfo.Name)
		s.teardownSpecState(info.EnvKey, containerInfo.ID)
	}

	return nil
}

// teardownSpecState removes the persisted ContainerState record and
// stops any active port relays for the container being torn down,
// mirroring the cleanup the label-based state.Manager already does for
// its own records.
func (s *EnvironmentService) teardownSpecState(envKey, containerID string) {
	if s.stateStore != nil {
		if err := s.stateStore.Delete(envKey); err != nil {
			ui.Verbose("container state cleanup skipped: %v", err)
		}
	}
	if s.forwardEngine != nil {
		s.forwardEngine.StopAll(containerID)
	}
}

// DownWithEnvKey removes the environment using just project name and env key.
func (s *EnvironmentService) DownWithEnvKey(ctx context.Context, projectName, envKey string, opts DownOptions) error {
	currentState, containerInfo, err := s.stateMgr.GetStateWithProject(ctx, projectName, envKey)
	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}

	if currentState == state.StateAbsent {
		fmt.Println("No environment found")
		return nil
	}

	// Handle based on plan type
	if containerInfo != nil && containerInfo.Plan == docker.PlanSingle {
		if containerInfo.Running {
			if err := s.dockerClient.StopContainer(ctx, containerInfo.ID, nil); err != nil {
				return fmt.Errorf("failed to stop container: %w", err)
			}
		}
		if err := s.dockerClient.RemoveContainer(ctx, containerInfo.ID, true, opts.RemoveVolumes); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}
	} else {
		actualProject := ""
		if containerInfo != nil {
			actualProject = containerInfo.ComposeProject
		}
		if actualProject == "" {
			actualProject = projectName
		}
		r := compose.NewRunnerFromEnvKey(s.workspacePath, actualProject, envKey)
		if err := r.Down(ctx, runnerPkg.DownOptions{
			RemoveVolumes: opts.RemoveVolumes,
			RemoveOrphans: opts.RemoveOrphans,
		}); err != nil {
			return fmt.Errorf("failed to remove environment: %w", err)
		}
	}

	// Clean up SSH config entry
	if containerInfo != nil {
		ssh.RemoveSSHConfig(containerInfo.Name)
		s.teardownSpecState(envKey, containerInfo.ID)
	}

	fmt.Println("Environment removed")
	return nil
}

// BuildOptions configures the Build operation.
type BuildOptions struct {
	NoCache bool
	Pull    bool
}

// Build builds the environment images without starting containers.
func (s *EnvironmentService) Build(ctx context.Context, opts BuildOptions) error {
	info, err := s.LoadEnvironmentInfo()
	if err != nil {
		return err
	}

	envRunner, err := s.CreateRunner(info)
	if err != nil {
		return err
	}

	if info.Config.IsComposePlan() {
		fmt.Println("Building compose-based environment...")
	}

	if err := envRunner.Build(ctx, runnerPkg.BuildOptions{
		NoCache: opts.NoCache,
		Pull:    opts.Pull,
	}); err != nil {
		return fmt.Errorf("failed to build: %w", err)
	}

	fmt.Println("Build complete")
	return nil
}

// StopOptions configures the Stop operation.
type StopOptions struct {
	Force bool // Force stop even if shutdownAction is "none"
}

// Stop stops the running environment.
// Respects the shutdownAction setting unless Force is true.
func (s *EnvironmentService) Stop(ctx context.Context, info *EnvironmentInfo, opts StopOptions) error {
	// Check shutdownAction setting
	if !opts.Force && info.Config.ShutdownAction == "none" {
		fmt.Println("Skipping stop: shutdownAction is set to 'none'")
		fmt.Println("Use --force to stop anyway")
		return nil
	}

	envRunner, err := s.CreateRunner(info)
	if err != nil {
		return err
	}

	return envRunner.Stop(ctx)
}

// runLifecycleHooks runs appropriate lifecycle hooks based on whether this is a new environment.
func (s *EnvironmentService) runLifecycleHooks(ctx context.Context, info *EnvironmentInfo, isNew bool, sshAgentEnabled bool) error {
	_, containerInfo, err := s.stateMgr.GetStateWithProject(ctx, info.ProjectName, info.EnvKey)
	if err != nil {
		return fmt.Errorf("failed to get container state: %w", err)
	}
	if containerInfo == nil {
		return fmt.Errorf("no primary container found")
	}

	// Create hook runner (agent binary is pre-deployed, so skip deployment in hooks)
	hookRunner := lifecycle.NewHookRunner(
		s.dockerClient,
		containerInfo.ID,
		s.workspacePath,
		info.Config,
		info.EnvKey,
		sshAgentEnabled,
		sshAgentEnabled, // skip deploy if already deployed
	)

	// Resolve features to get their lifecycle hooks
	if len(info.Config.Features) > 0 {
		configDir := filepath.Dir(info.ConfigPath)
		mgr, err := features.NewManager(configDir)
		if err == nil {
			resolvedFeatures, err := mgr.ResolveAll(ctx, info.Config.Features, info.Config.OverrideFeatureInstallOrder)
			if err == nil && len(resolvedFeatures) > 0 {
				hookRunner.SetFeatureHooks(
					lifecycle.FeatureHooksFrom(features.CollectOnCreateCommands(resolvedFeatures)),
					lifecycle.FeatureHooksFrom(features.CollectUpdateContentCommands(resolvedFeatures)),
					lifecycle.FeatureHooksFrom(features.CollectPostCreateCommands(resolvedFeatures)),
					lifecycle.FeatureHooksFrom(features.CollectPostStartCommands(resolvedFeatures)),
					lifecycle.FeatureHooksFrom(features.CollectPostAttachCommands(resolvedFeatures)),
				)
			}
		}
	}

	// Run appropriate hooks based on whether this is a new environment
	if isNew {
		return hookRunner.RunAllCreateHooks(ctx)
	}
	return hookRunner.RunStartHooks(ctx)
}

// GetStateMgr returns the state manager for direct access when needed.
func (s *EnvironmentService) GetStateMgr() *state.Manager {
	return s.stateMgr
}

// GetDockerClient returns the Docker client for direct access when needed.
func (s *EnvironmentService) GetDockerClient() *docker.Client {
	return s.dockerClient
}

// GetWorkspacePath returns the workspace path.
func (s *EnvironmentService) GetWorkspacePath() string {
	return s.workspacePath
}
