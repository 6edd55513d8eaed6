// envboot.go
package envboot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
	"github.com/arc-language/envboot/pkg/installer"
	"github.com/arc-language/envboot/pkg/manifest"
	"github.com/arc-language/envboot/pkg/platform"
	"github.com/arc-language/envboot/pkg/registry"
)

// Re-export types for convenience
type (
	Config      = core.Config
	Environment = env.Environment
	Activation  = env.Activation
	Requirement = manifest.Requirement
	Report      = installer.Report
	Result      = installer.Result
	BackendType = backend.BackendType
)

// Re-export constants
const (
	BackendPip     = backend.BackendPip
	BackendUV      = backend.BackendUV
	BackendArchive = backend.BackendArchive
	BackendAuto    = backend.BackendAuto

	StatusInstalled        = installer.StatusInstalled
	StatusAlreadySatisfied = installer.StatusAlreadySatisfied
	StatusFailed           = installer.StatusFailed
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return core.DefaultConfig()
}

// Options carries collaborators that are not part of the file configuration
type Options struct {
	// Environ is the process context activations modify; nil means the
	// real process environment
	Environ env.Environ

	// Logger for progress output; nil discards
	Logger *log.Logger

	// Runner executes pip, uv and python; nil uses os/exec
	Runner backend.Runner

	// Backend bypasses detection when set
	Backend backend.Backend
}

// Orchestrator sequences environment creation, activation and installation
type Orchestrator struct {
	config  *Config
	envs    *env.Manager
	logger  *log.Logger
	runner  backend.Runner
	backend backend.Backend
}

// BootstrapResult is what Bootstrap leaves behind
type BootstrapResult struct {
	Environment *Environment
	Activation  *Activation // Still active
	Report      *Report
	Reused      bool // Activation was already in effect
}

// New creates an orchestrator
func New(cfg *Config, opts *Options) *Orchestrator {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if opts == nil {
		opts = &Options{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Orchestrator{
		config:  cfg,
		envs:    env.NewManager(opts.Environ, logger),
		logger:  logger,
		runner:  opts.Runner,
		backend: opts.Backend,
	}
}

// Root returns the absolute environment root
func (o *Orchestrator) Root() string {
	root, err := filepath.Abs(o.config.Root)
	if err != nil {
		return o.config.Root
	}
	return root
}

// Manager exposes the environment manager
func (o *Orchestrator) Manager() *env.Manager {
	return o.envs
}

// Platform detects the backends usable with the current configuration
func (o *Orchestrator) Platform() *platform.Platform {
	return platform.Detect(o.backendConfig())
}

// Backend resolves the backend for the environment. An existing
// environment keeps the backend it was created with unless one is
// configured explicitly.
func (o *Orchestrator) Backend(e *Environment) (backend.Backend, error) {
	if o.backend != nil {
		return o.backend, nil
	}

	cfg := o.backendConfig()
	name := o.config.Backend
	if (name == "" || name == string(backend.BackendAuto)) && e != nil && e.Backend != "" {
		b, err := registry.Get(e.Backend, cfg)
		if err != nil {
			return nil, err
		}
		o.backend = b
		return b, nil
	}

	b, err := platform.ResolveBackend(platform.Detect(cfg), name, cfg)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("resolved backend", "backend", b.Name())
	o.backend = b
	return b, nil
}

func (o *Orchestrator) backendConfig() *backend.Config {
	cfg := backend.DefaultConfig()
	if o.config.Python != "" {
		cfg.Python = o.config.Python
	}
	if o.config.ArchiveDir != "" {
		cfg.ArchiveDir = o.config.ArchiveDir
	}
	cfg.IndexURL = o.config.IndexURL
	if o.runner != nil {
		cfg.Runner = o.runner
	}
	cfg.Logger = o.logger
	return cfg
}

// Create creates the environment, or returns the existing one. With
// exclusive set an existing environment is an error.
func (o *Orchestrator) Create(ctx context.Context, exclusive bool) (*Environment, error) {
	root := o.Root()

	opts := env.CreateOptions{Exclusive: exclusive, Python: o.config.Python}
	if _, err := o.envs.Load(root); err != nil {
		if !errors.Is(err, core.ErrEnvironmentNotFound) {
			return nil, err
		}
		b, err := o.Backend(nil)
		if err != nil {
			return nil, &core.Error{Op: "create", Package: root, Err: err}
		}
		opts.Provisioner = b
	}

	return o.envs.Create(ctx, root, opts)
}

// Activate activates the environment at the configured root
func (o *Orchestrator) Activate() (*Activation, error) {
	e, err := o.envs.Load(o.Root())
	if err != nil {
		return nil, &core.Error{Op: "activate", Package: o.Root(), Err: err}
	}
	return o.envs.Activate(e)
}

// Current returns the activation in effect, if any
func (o *Orchestrator) Current() *Activation {
	return o.envs.Current()
}

// Deactivate releases the activation in effect. It returns the released
// handle, or nil when nothing was active.
func (o *Orchestrator) Deactivate() (*Activation, error) {
	act := o.envs.Current()
	if act == nil {
		return nil, nil
	}
	if err := o.envs.Deactivate(act); err != nil {
		return nil, err
	}
	return act, nil
}

// Install installs the manifest into the environment at the configured
// root, which must be the active one
func (o *Orchestrator) Install(ctx context.Context, manifestPath string) (*Report, error) {
	// Adopt an activation inherited from the shell
	o.envs.Current()

	e, err := o.envs.Load(o.Root())
	if err != nil {
		return nil, &core.Error{Op: "install", Package: o.Root(), Err: err}
	}
	if !o.envs.IsActive(e) {
		return nil, &core.Error{Op: "install", Package: e.Root, Err: core.ErrEnvironmentNotActive}
	}

	reqs, err := manifest.Read(o.manifestPath(manifestPath))
	if err != nil {
		return nil, err
	}
	return o.install(ctx, e, reqs)
}

// Bootstrap runs create (idempotent) -> activate -> install and leaves the
// environment active. If it is already the active environment that
// activation is reused.
func (o *Orchestrator) Bootstrap(ctx context.Context, manifestPath string) (*BootstrapResult, error) {
	reqs, err := manifest.Read(o.manifestPath(manifestPath))
	if err != nil {
		return nil, err
	}

	e, err := o.Create(ctx, false)
	if err != nil {
		return nil, err
	}

	result := &BootstrapResult{Environment: e}
	if current := o.envs.Current(); current != nil && o.envs.IsActive(e) {
		o.logger.Info("environment already active", "root", e.Root)
		result.Activation = current
		result.Reused = true
	} else {
		act, err := o.envs.Activate(e)
		if err != nil {
			return nil, err
		}
		result.Activation = act
	}

	result.Report, err = o.install(ctx, e, reqs)
	return result, err
}

func (o *Orchestrator) install(ctx context.Context, e *Environment, reqs []manifest.Requirement) (*Report, error) {
	if !o.envs.IsActive(e) {
		return nil, &core.Error{Op: "install", Package: e.Root, Err: core.ErrEnvironmentNotActive}
	}

	b, err := o.Backend(e)
	if err != nil {
		return nil, &core.Error{Op: "install", Package: e.Root, Err: err}
	}

	inst := installer.New(b, o.envs, &installer.Config{
		RetryInterval: o.config.RetryInterval,
		RetryTimeout:  o.config.RetryTimeout,
		Logger:        o.logger,
	})
	return inst.Install(ctx, e, reqs)
}

func (o *Orchestrator) manifestPath(path string) string {
	if path != "" {
		return path
	}
	if o.config.Manifest != "" {
		return o.config.Manifest
	}
	return core.DefaultManifest
}

// String describes the orchestrator for debug output
func (o *Orchestrator) String() string {
	return fmt.Sprintf("envboot(root=%s, backend=%s)", o.Root(), o.config.Backend)
}
