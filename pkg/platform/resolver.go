// pkg/platform/resolver.go
package platform

import (
	"fmt"

	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/registry"
)

// ResolveBackend resolves which backend to use based on platform and the
// requested name ("" or "auto" picks the preferred one)
func ResolveBackend(platform *Platform, name string, cfg *backend.Config) (backend.Backend, error) {
	backendName := name

	// Priority:
	// 1. User-specified backend
	// 2. Platform preferred backend
	if backendName == "" || backendName == string(backend.BackendAuto) {
		if platform.Preferred == "" {
			return nil, fmt.Errorf("%w: no backend available (need uv, %s, or an archive directory)", core.ErrBackendNotAvailable, pythonName(cfg))
		}
		backendName = platform.Preferred
	}

	// Check if backend is available
	if !contains(platform.Available, backendName) {
		return nil, fmt.Errorf("%w: backend '%s' is not available on this system", core.ErrBackendNotAvailable, backendName)
	}

	// Get backend from registry
	b, err := registry.Get(backendName, cfg)
	if err != nil {
		return nil, fmt.Errorf("getting backend '%s': %w", backendName, err)
	}

	return b, nil
}
