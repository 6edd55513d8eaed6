// pkg/core/package.go
package core

// Package represents a package installed in an environment
type Package struct {
	Name    string `json:"name"`    // Package name as reported by the backend
	Version string `json:"version"` // Installed version
}
