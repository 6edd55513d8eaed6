// pkg/backend/pip.go
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
	"github.com/arc-language/envboot/pkg/manifest"
)

var pipFailures = failurePatterns{
	notFound: []string{
		"No matching distribution found",
		"Could not find a version that satisfies",
	},
	transient: []string{
		"Temporary failure in name resolution",
		"NewConnectionError",
		"ReadTimeoutError",
		"ConnectTimeoutError",
		"Connection reset by peer",
		"HTTP error 5",
	},
}

var pipSatisfied = regexp.MustCompile(`(?m)^Requirement already satisfied: (\S+?)(?:[=<>!~].*?)? in .*?\((\S+)\)\s*$`)

// PipBackend provisions with `python -m venv` and installs with pip
type PipBackend struct {
	config *Config
}

// NewPipBackend creates a new pip backend
func NewPipBackend(config *Config) *PipBackend {
	return &PipBackend{config: config.withDefaults()}
}

// Name returns the backend name
func (b *PipBackend) Name() string {
	return string(BackendPip)
}

// IsAvailable checks whether the configured interpreter exists
func (b *PipBackend) IsAvailable() bool {
	_, err := b.config.Runner.LookPath(b.config.Python)
	return err == nil
}

// Provision creates the venv
func (b *PipBackend) Provision(ctx context.Context, root string) error {
	b.config.Logger.Debug("running venv", "python", b.config.Python, "root", root)

	out, err := b.config.Runner.Run(ctx, b.config.Python, "-m", "venv", root)
	if err != nil {
		return classify("provision", root, out, err, failurePatterns{})
	}
	return nil
}

// Installed lists the packages pip sees in the environment
func (b *PipBackend) Installed(ctx context.Context, e *env.Environment) ([]core.Package, error) {
	out, err := b.config.Runner.Run(ctx, e.PythonPath(), "-m", "pip", "list", "--format=json", "--disable-pip-version-check")
	if err != nil {
		return nil, classify("list", e.Root, out, err, pipFailures)
	}
	return parsePackageList(out.Stdout)
}

// Install installs a single requirement with pip
func (b *PipBackend) Install(ctx context.Context, e *env.Environment, req manifest.Requirement) (Outcome, error) {
	args := []string{"-m", "pip", "install", "--disable-pip-version-check", "--no-input"}
	if b.config.IndexURL != "" {
		args = append(args, "--index-url", b.config.IndexURL)
	}
	args = append(args, req.String())

	b.config.Logger.Debug("pip install", "requirement", req.String())

	out, err := b.config.Runner.Run(ctx, e.PythonPath(), args...)
	if err != nil {
		return Outcome{}, classify("install", req.String(), out, err, pipFailures)
	}
	return parsePipOutcome(req, out.Stdout), nil
}

// parsePipOutcome reads pip's summary lines
func parsePipOutcome(req manifest.Requirement, stdout string) Outcome {
	if version, ok := installedVersion(req, stdout, "Successfully installed "); ok {
		return Outcome{Version: version}
	}
	for _, m := range pipSatisfied.FindAllStringSubmatch(stdout, -1) {
		if manifest.NormalizeName(m[1]) == req.Key() {
			return Outcome{Version: m[2], AlreadySatisfied: true}
		}
	}
	return Outcome{}
}

// installedVersion finds "<name>-<version>" for req in the line starting
// with marker ("Successfully installed a-1.0 b-2.0").
func installedVersion(req manifest.Requirement, text, marker string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), marker)
		if !ok {
			continue
		}
		for _, field := range strings.Fields(rest) {
			i := strings.LastIndex(field, "-")
			if i <= 0 {
				continue
			}
			if manifest.NormalizeName(field[:i]) == req.Key() {
				return field[i+1:], true
			}
		}
	}
	return "", false
}

// parsePackageList decodes `pip list --format=json`
func parsePackageList(data string) ([]core.Package, error) {
	var pkgs []core.Package
	if err := json.Unmarshal([]byte(data), &pkgs); err != nil {
		return nil, fmt.Errorf("parsing package list: %w", err)
	}
	return pkgs, nil
}
