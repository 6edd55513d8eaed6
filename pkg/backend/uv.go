// pkg/backend/uv.go
package backend

import (
	"context"
	"strings"

	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
	"github.com/arc-language/envboot/pkg/manifest"
)

var uvFailures = failurePatterns{
	notFound: []string{
		"was not found in the package registry",
		"No solution found when resolving dependencies",
	},
	transient: []string{
		"error sending request",
		"operation timed out",
		"dns error",
		"Connection reset by peer",
		"Failed to fetch",
	},
}

// UVBackend provisions and installs with uv
type UVBackend struct {
	config *Config
}

// NewUVBackend creates a new uv backend
func NewUVBackend(config *Config) *UVBackend {
	return &UVBackend{config: config.withDefaults()}
}

// Name returns the backend name
func (b *UVBackend) Name() string {
	return string(BackendUV)
}

// IsAvailable checks if uv is on PATH
func (b *UVBackend) IsAvailable() bool {
	_, err := b.config.Runner.LookPath("uv")
	return err == nil
}

// Provision runs `uv venv`
func (b *UVBackend) Provision(ctx context.Context, root string) error {
	out, err := b.config.Runner.Run(ctx, "uv", "venv", "--quiet", "--python", b.config.Python, root)
	if err != nil {
		return classify("provision", root, out, err, uvFailures)
	}
	return nil
}

// Installed lists packages with `uv pip list`
func (b *UVBackend) Installed(ctx context.Context, e *env.Environment) ([]core.Package, error) {
	out, err := b.config.Runner.Run(ctx, "uv", "pip", "list", "--format=json", "--python", e.PythonPath())
	if err != nil {
		return nil, classify("list", e.Root, out, err, uvFailures)
	}
	return parsePackageList(out.Stdout)
}

// Install installs a single requirement with `uv pip install`
func (b *UVBackend) Install(ctx context.Context, e *env.Environment, req manifest.Requirement) (Outcome, error) {
	args := []string{"pip", "install", "--python", e.PythonPath()}
	if b.config.IndexURL != "" {
		args = append(args, "--index-url", b.config.IndexURL)
	}
	args = append(args, req.String())

	b.config.Logger.Debug("uv pip install", "requirement", req.String())

	out, err := b.config.Runner.Run(ctx, "uv", args...)
	if err != nil {
		return Outcome{}, classify("install", req.String(), out, err, uvFailures)
	}
	return parseUVOutcome(req, out.Stderr), nil
}

// parseUVOutcome reads uv's change list (" + name==version" lines)
func parseUVOutcome(req manifest.Requirement, stderr string) Outcome {
	for _, line := range strings.Split(stderr, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "+ ")
		if !ok {
			continue
		}
		name, version, found := strings.Cut(rest, "==")
		if found && manifest.NormalizeName(name) == req.Key() {
			return Outcome{Version: strings.TrimSpace(version)}
		}
	}
	if strings.Contains(stderr, "Audited") {
		return Outcome{AlreadySatisfied: true}
	}
	return Outcome{}
}
