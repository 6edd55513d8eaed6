// pkg/env/env-manager.go
package env

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/arc-language/envboot/pkg/core"
)

// Manager creates environments and tracks the one active in its process
// context. At most one activation is in effect at a time.
type Manager struct {
	mu      sync.Mutex
	environ Environ
	logger  *log.Logger
	active  *Activation
	seen    map[string]bool // roots activated during this process
}

// NewManager creates an environment manager. A nil environ means the real
// process environment; a nil logger discards output.
func NewManager(environ Environ, logger *log.Logger) *Manager {
	if environ == nil {
		environ = ProcessEnviron()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		environ: environ,
		logger:  logger,
		seen:    make(map[string]bool),
	}
}

// Create creates a new environment at root. If root already holds an
// environment it is returned unchanged, unless opts.Exclusive is set.
func (m *Manager) Create(ctx context.Context, root string, opts CreateOptions) (*Environment, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, core.FSError("create", root, err)
	}

	existing, err := m.Load(root)
	switch {
	case err == nil:
		if opts.Exclusive {
			return nil, &core.Error{Op: "create", Package: root, Err: core.ErrEnvironmentAlreadyExists}
		}
		m.logger.Info("environment already exists", "root", root)
		return existing, nil
	case !errors.Is(err, core.ErrEnvironmentNotFound):
		return nil, err
	}

	created, err := prepareRoot(root)
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		if created {
			_ = os.RemoveAll(root)
		}
	}

	backend := ""
	if opts.Provisioner != nil {
		backend = opts.Provisioner.Name()
		m.logger.Info("provisioning environment", "root", root, "backend", backend)
		if err := opts.Provisioner.Provision(ctx, root); err != nil {
			cleanup()
			return nil, &core.Error{Op: "create", Package: root, Err: err}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	env := &Environment{
		Name:      filepath.Base(root),
		Root:      root,
		Backend:   backend,
		Python:    opts.Python,
		Packages:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.saveEnv(env); err != nil {
		cleanup()
		return nil, err
	}

	m.logger.Info("created environment", "root", root)
	return env, nil
}

// prepareRoot makes sure root is an empty directory, reporting whether it
// had to be created.
func prepareRoot(root string) (bool, error) {
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(root, 0755); err != nil {
			return false, core.FSError("create", root, err)
		}
		return true, nil
	case err != nil:
		return false, core.FSError("create", root, err)
	case !info.IsDir():
		return false, &core.Error{Op: "create", Package: root, Err: fmt.Errorf("%w: path is a file, not an environment", core.ErrEnvironmentAlreadyExists)}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return false, core.FSError("create", root, err)
	}
	if len(entries) > 0 {
		return false, &core.Error{Op: "create", Package: root, Err: fmt.Errorf("%w: directory is not empty and is not an environment", core.ErrEnvironmentAlreadyExists)}
	}
	return false, nil
}

// Load loads the environment at root
func (m *Manager) Load(root string) (*Environment, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, core.FSError("load", root, err)
	}

	data, err := os.ReadFile(filepath.Join(root, MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrInvalid) || isNotDir(err) {
			return nil, &core.Error{Op: "load", Package: root, Err: core.ErrEnvironmentNotFound}
		}
		return nil, core.FSError("load", root, err)
	}

	var env Environment
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &core.Error{Op: "load", Package: root, Err: fmt.Errorf("%w: invalid %s: %v", core.ErrEnvironmentNotFound, MetadataFile, err)}
	}
	env.Root = root
	if env.Packages == nil {
		env.Packages = make(map[string]string)
	}

	return &env, nil
}

// State reports where e is in its lifecycle
func (m *Manager) State(e *Environment) State {
	if e == nil {
		return StateUninitialized
	}
	stored, err := m.Load(e.Root)
	if err != nil {
		return StateUninitialized
	}
	if m.IsActive(e) {
		return StateActivated
	}
	if stored.ActivatedAt != "" || m.wasActivated(e.Root) {
		return StateDeactivated
	}
	return StateCreated
}

// Activate makes e the active environment of the process context
func (m *Manager) Activate(e *Environment) (*Activation, error) {
	if e == nil {
		return nil, fmt.Errorf("environment cannot be nil")
	}
	if _, err := m.Load(e.Root); err != nil {
		return nil, &core.Error{Op: "activate", Package: e.Root, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, &core.Error{Op: "activate", Package: e.Root, Err: fmt.Errorf("%w: %s", core.ErrEnvironmentAlreadyActive, m.active.Env.Root)}
	}
	if current, ok := m.environ.LookupEnv(VarVirtualEnv); ok && current != "" {
		return nil, &core.Error{Op: "activate", Package: e.Root, Err: fmt.Errorf("%w: %s", core.ErrEnvironmentAlreadyActive, current)}
	}

	var changes []change
	changes = append(changes, change{key: VarVirtualEnv, value: strPtr(e.Root)})

	oldPath := lookup(m.environ, VarPath)
	newPath := e.BinDir()
	if oldPath != nil {
		changes = append(changes, change{key: VarOldPath, value: strPtr(*oldPath)})
		if *oldPath != "" {
			newPath += listSeparator() + *oldPath
		}
	}
	changes = append(changes, change{key: VarPath, value: strPtr(newPath)})

	if home := lookup(m.environ, VarPythonHome); home != nil {
		changes = append(changes,
			change{key: VarOldPythonHome, value: strPtr(*home)},
			change{key: VarPythonHome},
		)
	}

	act := &Activation{
		Env:      e,
		manager:  m,
		previous: make(map[string]*string),
	}
	for _, c := range changes {
		act.previous[c.key] = lookup(m.environ, c.key)
	}
	if err := apply(m.environ, changes); err != nil {
		_ = restore(m.environ, act.previous)
		return nil, &core.Error{Op: "activate", Package: e.Root, Err: err}
	}
	act.applied = changes
	m.active = act
	m.remember(e)

	// Later invocations derive Deactivated from this
	e.ActivatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := m.saveEnv(e); err != nil {
		m.logger.Warn("could not record activation", "root", e.Root, "err", err)
	}

	m.logger.Info("activated environment", "root", e.Root)
	return act, nil
}

// Deactivate restores the state from before act was applied. Deactivating
// an already released or nil handle is a no-op.
func (m *Manager) Deactivate(act *Activation) error {
	if act == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if act.released {
		return nil
	}
	if err := restore(m.environ, act.previous); err != nil {
		return &core.Error{Op: "deactivate", Package: act.Env.Root, Err: err}
	}
	act.released = true
	if m.active == act {
		m.active = nil
	}

	m.logger.Info("deactivated environment", "root", act.Env.Root)
	return nil
}

// Current returns the activation in effect, adopting one inherited from
// the parent shell (VIRTUAL_ENV set by `eval "$(envboot activate)"` or a
// venv activate script). It returns nil when nothing is active.
func (m *Manager) Current() *Activation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return m.active
	}

	root, ok := m.environ.LookupEnv(VarVirtualEnv)
	if !ok || root == "" {
		return nil
	}

	e, err := m.Load(root)
	if err != nil {
		m.logger.Debug("active environment has no metadata", "root", root, "err", err)
		e = &Environment{Name: filepath.Base(root), Root: root, Packages: map[string]string{}}
	}

	act := &Activation{
		Env:      e,
		manager:  m,
		previous: make(map[string]*string),
	}

	act.applied = append(act.applied, change{key: VarVirtualEnv, value: strPtr(root)})
	act.previous[VarVirtualEnv] = nil

	if path := lookup(m.environ, VarPath); path != nil {
		act.applied = append(act.applied, change{key: VarPath, value: path})
		if old := lookup(m.environ, VarOldPath); old != nil {
			act.applied = append(act.applied, change{key: VarOldPath, value: old})
			act.previous[VarOldPath] = nil
			act.previous[VarPath] = old
		} else {
			act.previous[VarPath] = strPtr(stripPathEntry(*path, e.BinDir()))
		}
	}

	if old := lookup(m.environ, VarOldPythonHome); old != nil {
		act.applied = append(act.applied,
			change{key: VarOldPythonHome, value: old},
			change{key: VarPythonHome},
		)
		act.previous[VarOldPythonHome] = nil
		act.previous[VarPythonHome] = old
	}

	m.active = act
	m.remember(e)
	return act
}

// IsActive reports whether e is the active environment
func (m *Manager) IsActive(e *Environment) bool {
	if e == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active != nil && samePath(m.active.Env.Root, e.Root)
}

// remember must be called with m.mu held
func (m *Manager) remember(e *Environment) {
	m.seen[filepath.Clean(e.Root)] = true
}

func (m *Manager) wasActivated(root string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[filepath.Clean(root)]
}

// UpdateEnv saves changes to environment
func (m *Manager) UpdateEnv(e *Environment) error {
	e.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return m.saveEnv(e)
}

// AddPackage records a package installation
func (e *Environment) AddPackage(name, version string) {
	if e.Packages == nil {
		e.Packages = make(map[string]string)
	}
	e.Packages[name] = version
}

// Release restores the process variables changed by the activation
func (a *Activation) Release() error {
	if a == nil || a.manager == nil {
		return nil
	}
	return a.manager.Deactivate(a)
}

// Released reports whether the activation has been released
func (a *Activation) Released() bool {
	if a.manager == nil {
		return a.released
	}
	a.manager.mu.Lock()
	defer a.manager.mu.Unlock()
	return a.released
}

// saveEnv writes the metadata atomically
func (m *Manager) saveEnv(e *Environment) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal environment metadata: %w", err)
	}

	tmp, err := os.CreateTemp(e.Root, MetadataFile+".*.tmp")
	if err != nil {
		return core.FSError("write metadata", e.Root, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return core.FSError("write metadata", e.Root, err)
	}
	if err := tmp.Close(); err != nil {
		return core.FSError("write metadata", e.Root, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(e.Root, MetadataFile)); err != nil {
		return core.FSError("write metadata", e.Root, err)
	}
	return nil
}

func apply(environ Environ, changes []change) error {
	for _, c := range changes {
		var err error
		if c.value == nil {
			err = environ.Unsetenv(c.key)
		} else {
			err = environ.Setenv(c.key, *c.value)
		}
		if err != nil {
			return fmt.Errorf("setting %s: %w", c.key, err)
		}
	}
	return nil
}

func restore(environ Environ, previous map[string]*string) error {
	for key, value := range previous {
		var err error
		if value == nil {
			err = environ.Unsetenv(key)
		} else {
			err = environ.Setenv(key, *value)
		}
		if err != nil {
			return fmt.Errorf("restoring %s: %w", key, err)
		}
	}
	return nil
}

func stripPathEntry(path, entry string) string {
	parts := strings.Split(path, listSeparator())
	kept := parts[:0]
	for _, p := range parts {
		if !samePath(p, entry) {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, listSeparator())
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
