// pkg/backend/types.go
package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
	"github.com/arc-language/envboot/pkg/manifest"
)

// BackendType names an installation backend
type BackendType string

const (
	// BackendPip uses python -m venv and pip
	BackendPip BackendType = "pip"
	// BackendUV uses Astral's uv
	BackendUV BackendType = "uv"
	// BackendArchive installs from local .tar.xz / .nar.xz archives
	BackendArchive BackendType = "archive"
	// BackendAuto automatically detects the best backend
	BackendAuto BackendType = "auto"
)

// Backend defines the interface that all installation backends must implement
type Backend interface {
	// Name returns the name of the backend
	Name() string

	// Provision lays out a fresh environment root
	Provision(ctx context.Context, root string) error

	// Installed lists the packages present in the environment
	Installed(ctx context.Context, e *env.Environment) ([]core.Package, error)

	// Install installs one requirement into the environment
	Install(ctx context.Context, e *env.Environment, req manifest.Requirement) (Outcome, error)
}

// Outcome describes what Install did
type Outcome struct {
	Version          string // Installed version, if the backend reports it
	AlreadySatisfied bool   // Nothing was installed
}

// Config holds configuration shared by the backends
type Config struct {
	// Python is the interpreter used to provision environments
	Python string

	// ArchiveDir is where the archive backend looks for packages
	ArchiveDir string

	// IndexURL overrides the package index for pip and uv
	IndexURL string

	// Runner executes external commands
	Runner Runner

	// Logger for custom logging
	Logger *log.Logger
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	archiveDir := os.Getenv("ENVBOOT_ARCHIVE_DIR")
	if archiveDir == "" {
		if cache, err := os.UserCacheDir(); err == nil {
			archiveDir = filepath.Join(cache, "envboot", "archives")
		}
	}

	return &Config{
		Python:     "python3",
		ArchiveDir: archiveDir,
		Runner:     ExecRunner(),
		Logger:     log.New(io.Discard),
	}
}

// withDefaults fills unset fields from DefaultConfig
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}

	out := *c
	if out.Python == "" {
		out.Python = def.Python
	}
	if out.Runner == nil {
		out.Runner = def.Runner
	}
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	return &out
}
