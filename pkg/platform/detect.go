// pkg/platform/detect.go
package platform

import (
	"fmt"
	"runtime"

	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/registry"
)

// preference orders backends for auto mode
var preference = []string{
	string(backend.BackendUV),
	string(backend.BackendPip),
	string(backend.BackendArchive),
}

// Platform represents the detected system platform
type Platform struct {
	OS        string   // linux, darwin, windows
	Arch      string   // amd64, arm64, 386, arm
	Available []string // Backends usable on this system
	Preferred string   // Backend chosen in auto mode
}

// Detect detects the current platform and the backends usable with cfg
func Detect(cfg *backend.Config) *Platform {
	p := &Platform{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Available: []string{},
	}

	// Known backends first, in preference order, then anything else registered
	names := append([]string{}, preference...)
	for _, name := range registry.Available() {
		if !contains(names, name) {
			names = append(names, name)
		}
	}

	for _, name := range names {
		if registry.IsAvailable(name, cfg) {
			p.Available = append(p.Available, name)
		}
	}

	if len(p.Available) > 0 {
		p.Preferred = p.Available[0]
	}

	return p
}

// String returns a string representation of the platform
func (p *Platform) String() string {
	return fmt.Sprintf("%s/%s (available: %v, preferred: %s)",
		p.OS, p.Arch, p.Available, p.Preferred)
}
