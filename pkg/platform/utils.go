// pkg/platform/utils.go
package platform

import (
	"slices"

	"github.com/arc-language/envboot/pkg/backend"
)

// contains checks if a string slice contains a value
func contains(slice []string, item string) bool {
	return slices.Contains(slice, item)
}

func pythonName(cfg *backend.Config) string {
	if cfg == nil || cfg.Python == "" {
		return "python3"
	}
	return cfg.Python
}
