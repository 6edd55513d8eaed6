// pkg/registry/registry.go
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/core"
)

// Factory builds a backend from the shared configuration
type Factory func(cfg *backend.Config) backend.Backend

// Availability is implemented by backends that can tell whether their
// tooling is present on this system
type Availability interface {
	IsAvailable() bool
}

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

func init() {
	Register(string(backend.BackendPip), func(cfg *backend.Config) backend.Backend { return backend.NewPipBackend(cfg) })
	Register(string(backend.BackendUV), func(cfg *backend.Config) backend.Backend { return backend.NewUVBackend(cfg) })
	Register(string(backend.BackendArchive), func(cfg *backend.Config) backend.Backend { return backend.NewArchiveBackend(cfg) })
}

// Register makes a backend available by name, replacing any previous one
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// Get builds the named backend
func Get(name string, cfg *backend.Config) (backend.Backend, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("registry: %w: unknown backend '%s' (registered: %v)", core.ErrBackendNotAvailable, name, Available())
	}
	return factory(cfg), nil
}

// IsAvailable reports whether the named backend can run here. Backends
// that cannot tell are assumed available.
func IsAvailable(name string, cfg *backend.Config) bool {
	b, err := Get(name, cfg)
	if err != nil {
		return false
	}
	if a, ok := b.(Availability); ok {
		return a.IsAvailable()
	}
	return true
}

// Available returns the registered backend names, sorted
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
