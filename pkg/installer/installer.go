// pkg/installer/installer.go
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/siderolabs/go-retry/retry"

	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
	"github.com/arc-language/envboot/pkg/manifest"
)

// Installer installs manifest requirements into an active environment
type Installer struct {
	backend backend.Backend
	envs    *env.Manager
	config  Config
}

// New creates an installer. A nil config disables retries.
func New(b backend.Backend, envs *env.Manager, cfg *Config) *Installer {
	i := &Installer{backend: b, envs: envs}
	if cfg != nil {
		i.config = *cfg
	}
	if i.config.Logger == nil {
		i.config.Logger = log.New(io.Discard)
	}
	return i
}

// Install installs reqs in order. A requirement that fails is recorded and
// the rest are still attempted; the returned error is non-nil only when
// installation could not run at all (environment not active) or the
// context was cancelled. Inspect Report.Failed for per-requirement failures.
func (i *Installer) Install(ctx context.Context, e *env.Environment, reqs []manifest.Requirement) (*Report, error) {
	if e == nil || !i.envs.IsActive(e) {
		root := ""
		if e != nil {
			root = e.Root
		}
		return nil, &core.Error{Op: "install", Package: root, Err: core.ErrEnvironmentNotActive}
	}

	report := &Report{
		Environment: e.Root,
		Backend:     i.backend.Name(),
		Results:     make([]Result, 0, len(reqs)),
	}

	installed := i.installedIndex(ctx, e)
	recorded := false
	defer func() {
		if !recorded {
			return
		}
		if err := i.envs.UpdateEnv(e); err != nil {
			i.config.Logger.Warn("could not record installed packages", "root", e.Root, "err", err)
		}
	}()

	for idx, req := range reqs {
		if err := ctx.Err(); err != nil {
			report.Results = append(report.Results, cancelled(reqs[idx:], err)...)
			return report, err
		}

		if version, ok := installed[req.Key()]; ok {
			if match, decided := req.Match(version); match && decided {
				i.config.Logger.Info("already satisfied", "requirement", req.String(), "version", version)
				report.Results = append(report.Results, newResult(req, StatusAlreadySatisfied, version))
				continue
			}
		}

		i.config.Logger.Info("installing", "requirement", req.String())
		outcome, attempts, err := i.installOne(ctx, e, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.Results = append(report.Results, cancelled(reqs[idx:], ctxErr)...)
				return report, ctxErr
			}

			i.config.Logger.Error("install failed", "requirement", req.String(), "err", err)
			res := newResult(req, StatusFailed, "")
			res.Message = err.Error()
			res.Err = fmt.Errorf("%w: %s: %w", core.ErrPackageInstallFailure, req, err)
			res.Attempts = attempts
			report.Results = append(report.Results, res)
			continue
		}

		version := outcome.Version
		if version == "" {
			version = pinnedVersion(req)
		}

		status := StatusInstalled
		if outcome.AlreadySatisfied {
			status = StatusAlreadySatisfied
		}
		res := newResult(req, status, version)
		res.Attempts = attempts
		report.Results = append(report.Results, res)

		if version != "" {
			installed[req.Key()] = version
			if status == StatusInstalled {
				e.AddPackage(req.Key(), version)
				recorded = true
			}
		}
	}

	return report, nil
}

// installedIndex lists installed packages by normalized name. A listing
// failure is logged and treated as an empty environment; the backend still
// decides for each requirement.
func (i *Installer) installedIndex(ctx context.Context, e *env.Environment) map[string]string {
	index := make(map[string]string)

	pkgs, err := i.backend.Installed(ctx, e)
	if err != nil {
		i.config.Logger.Warn("could not list installed packages", "root", e.Root, "err", err)
		return index
	}
	for _, pkg := range pkgs {
		index[manifest.NormalizeName(pkg.Name)] = pkg.Version
	}
	return index
}

// installOne calls the backend, retrying while it reports transient errors
func (i *Installer) installOne(ctx context.Context, e *env.Environment, req manifest.Requirement) (backend.Outcome, int, error) {
	if i.config.RetryTimeout <= 0 || i.config.RetryInterval <= 0 {
		outcome, err := i.backend.Install(ctx, e, req)
		return outcome, 1, err
	}

	var (
		outcome  backend.Outcome
		lastErr  error
		attempts int
	)

	err := retry.Constant(i.config.RetryTimeout, retry.WithUnits(i.config.RetryInterval)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			attempts++

			out, installErr := i.backend.Install(ctx, e, req)
			lastErr = installErr
			if installErr == nil {
				outcome = out
				return nil
			}
			if errors.Is(installErr, core.ErrTransient) {
				i.config.Logger.Warn("transient failure, retrying", "requirement", req.String(), "attempt", attempts, "err", installErr)
				return retry.ExpectedError(installErr)
			}
			return installErr
		})
	if err != nil {
		if lastErr != nil {
			return backend.Outcome{}, attempts, lastErr
		}
		return backend.Outcome{}, attempts, err
	}
	return outcome, attempts, nil
}

func newResult(req manifest.Requirement, status Status, version string) Result {
	return Result{
		Requirement: req,
		Name:        req.Name,
		Constraint:  req.Constraint(),
		Status:      status,
		Version:     version,
	}
}

// cancelled marks every remaining requirement failed with the context error
func cancelled(reqs []manifest.Requirement, err error) []Result {
	out := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		res := newResult(req, StatusFailed, "")
		res.Message = err.Error()
		res.Err = fmt.Errorf("%w: %s: %w", core.ErrPackageInstallFailure, req, err)
		out = append(out, res)
	}
	return out
}

// pinnedVersion returns the version an exact pin names, if any
func pinnedVersion(req manifest.Requirement) string {
	switch {
	case req.Op == manifest.OpExact:
		return req.Version
	case req.Op == manifest.OpEqual && !strings.HasSuffix(req.Version, ".*"):
		return req.Version
	}
	return ""
}
