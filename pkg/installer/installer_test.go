package installer_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
	"github.com/arc-language/envboot/pkg/installer"
	"github.com/arc-language/envboot/pkg/manifest"
)

// fakeBackend installs from an in-memory catalog of name -> version
type fakeBackend struct {
	catalog   map[string]string
	installed []core.Package
	failures  map[string][]error // errors returned before succeeding
	calls     []string
	listCalls int
	onInstall func(req manifest.Requirement)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Provision(context.Context, string) error { return nil }

func (f *fakeBackend) Installed(context.Context, *env.Environment) ([]core.Package, error) {
	f.listCalls++
	return f.installed, nil
}

func (f *fakeBackend) Install(_ context.Context, _ *env.Environment, req manifest.Requirement) (backend.Outcome, error) {
	f.calls = append(f.calls, req.String())
	if f.onInstall != nil {
		f.onInstall(req)
	}

	if queue := f.failures[req.Key()]; len(queue) > 0 {
		f.failures[req.Key()] = queue[1:]
		return backend.Outcome{}, queue[0]
	}

	version, ok := f.catalog[req.Key()]
	if !ok {
		return backend.Outcome{}, &core.Error{Op: "install", Package: req.String(), Err: fmt.Errorf("%w: no such package", core.ErrPackageNotFound)}
	}
	return backend.Outcome{Version: version}, nil
}

func requirements(t *testing.T, lines ...string) []manifest.Requirement {
	t.Helper()

	reqs := make([]manifest.Requirement, 0, len(lines))
	for _, line := range lines {
		req, err := manifest.ParseRequirement(line)
		require.NoError(t, err)
		reqs = append(reqs, req)
	}
	return reqs
}

func activeEnv(t *testing.T) (*env.Manager, *env.Environment) {
	t.Helper()

	m := env.NewManager(env.MapEnviron{"PATH": "/usr/bin"}, nil)
	e, err := m.Create(context.Background(), filepath.Join(t.TempDir(), ".venv"), env.CreateOptions{})
	require.NoError(t, err)

	act, err := m.Activate(e)
	require.NoError(t, err)
	t.Cleanup(func() { _ = act.Release() })
	return m, e
}

func TestInstallRequiresActiveEnvironment(t *testing.T) {
	t.Parallel()

	m := env.NewManager(env.MapEnviron{}, nil)
	e, err := m.Create(context.Background(), filepath.Join(t.TempDir(), ".venv"), env.CreateOptions{})
	require.NoError(t, err)

	fb := &fakeBackend{catalog: map[string]string{"pkga": "1.0"}}
	report, err := installer.New(fb, m, nil).Install(context.Background(), e, requirements(t, "pkgA"))

	assert.ErrorIs(t, err, core.ErrEnvironmentNotActive)
	assert.Nil(t, report)
	assert.Empty(t, fb.calls)
	assert.Zero(t, fb.listCalls)
}

func TestInstallAllSucceed(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	fb := &fakeBackend{catalog: map[string]string{"pkga": "1.0", "pkgb": "2.3"}}

	report, err := installer.New(fb, m, nil).Install(context.Background(), e, requirements(t, "pkgA==1.0", "pkgB"))
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, installer.StatusInstalled, report.Results[0].Status)
	assert.Equal(t, "1.0", report.Results[0].Version)
	assert.Equal(t, installer.StatusInstalled, report.Results[1].Status)
	assert.Equal(t, "2.3", report.Results[1].Version)
	assert.False(t, report.Failed())
	assert.NoError(t, report.Err())
	assert.Equal(t, 1, fb.listCalls)

	loaded, err := m.Load(e.Root)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pkga": "1.0", "pkgb": "2.3"}, loaded.Packages)
}

func TestInstallPartialFailureContinues(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	fb := &fakeBackend{catalog: map[string]string{"pkga": "1.0", "pkgc": "3.0"}}

	report, err := installer.New(fb, m, nil).Install(context.Background(), e, requirements(t, "pkgA==1.0", "pkgB", "pkgC"))
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, installer.StatusInstalled, report.Results[0].Status)
	assert.Equal(t, installer.StatusFailed, report.Results[1].Status)
	assert.Contains(t, report.Results[1].Message, "no such package")
	assert.ErrorIs(t, report.Results[1].Err, core.ErrPackageInstallFailure)
	assert.ErrorIs(t, report.Results[1].Err, core.ErrPackageNotFound)
	assert.Equal(t, installer.StatusInstalled, report.Results[2].Status)

	assert.True(t, report.Failed())
	installed, satisfied, failed := report.Counts()
	assert.Equal(t, [3]int{2, 0, 1}, [3]int{installed, satisfied, failed})
	assert.ErrorIs(t, report.Err(), core.ErrPackageInstallFailure)
	assert.True(t, m.IsActive(e), "environment stays active after failures")
}

func TestInstallSkipsSatisfiedRequirements(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	fb := &fakeBackend{
		catalog:   map[string]string{"pkga": "1.0", "pkgb": "2.0"},
		installed: []core.Package{{Name: "PkgA", Version: "1.0"}, {Name: "pkgb", Version: "1.0"}},
	}

	report, err := installer.New(fb, m, nil).Install(context.Background(), e, requirements(t, "pkga==1.0", "pkgB>=2"))
	require.NoError(t, err)

	assert.Equal(t, installer.StatusAlreadySatisfied, report.Results[0].Status)
	assert.Equal(t, "1.0", report.Results[0].Version)
	assert.Equal(t, installer.StatusInstalled, report.Results[1].Status)
	assert.Equal(t, []string{"pkgB>=2"}, fb.calls)
}

func TestInstallIsIdempotent(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	fb := &fakeBackend{catalog: map[string]string{"pkga": "1.0"}}
	inst := installer.New(fb, m, nil)

	_, err := inst.Install(context.Background(), e, requirements(t, "pkgA==1.0"))
	require.NoError(t, err)
	fb.installed = []core.Package{{Name: "pkga", Version: "1.0"}}

	report, err := inst.Install(context.Background(), e, requirements(t, "pkgA==1.0"))
	require.NoError(t, err)
	assert.Equal(t, installer.StatusAlreadySatisfied, report.Results[0].Status)
	assert.Len(t, fb.calls, 1)
}

func TestInstallDuplicateRequirementSatisfiedByEarlierInstall(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	fb := &fakeBackend{catalog: map[string]string{"pkga": "1.0"}}

	report, err := installer.New(fb, m, nil).Install(context.Background(), e, requirements(t, "pkgA", "PKGA==1.0"))
	require.NoError(t, err)

	assert.Equal(t, installer.StatusInstalled, report.Results[0].Status)
	assert.Equal(t, installer.StatusAlreadySatisfied, report.Results[1].Status)
	assert.Len(t, fb.calls, 1)
}

func TestInstallRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	transient := &core.Error{Op: "install", Package: "pkgA", Err: fmt.Errorf("%w: connection reset", core.ErrTransient)}
	fb := &fakeBackend{
		catalog:  map[string]string{"pkga": "1.0"},
		failures: map[string][]error{"pkga": {transient, transient}},
	}
	inst := installer.New(fb, m, &installer.Config{RetryInterval: time.Millisecond, RetryTimeout: 5 * time.Second})

	report, err := inst.Install(context.Background(), e, requirements(t, "pkgA"))
	require.NoError(t, err)

	assert.Equal(t, installer.StatusInstalled, report.Results[0].Status)
	assert.Equal(t, 3, report.Results[0].Attempts)
	assert.Len(t, fb.calls, 3)
}

func TestInstallDoesNotRetryPermanentFailures(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	fb := &fakeBackend{catalog: map[string]string{}}
	inst := installer.New(fb, m, &installer.Config{RetryInterval: time.Millisecond, RetryTimeout: 5 * time.Second})

	report, err := inst.Install(context.Background(), e, requirements(t, "missing"))
	require.NoError(t, err)

	assert.Equal(t, installer.StatusFailed, report.Results[0].Status)
	assert.Len(t, fb.calls, 1)
}

func TestInstallGivesUpAfterRetryTimeout(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	transient := fmt.Errorf("%w: timed out", core.ErrTransient)
	queue := make([]error, 1000)
	for i := range queue {
		queue[i] = transient
	}
	fb := &fakeBackend{
		catalog:  map[string]string{"pkga": "1.0"},
		failures: map[string][]error{"pkga": queue},
	}
	inst := installer.New(fb, m, &installer.Config{RetryInterval: 10 * time.Millisecond, RetryTimeout: 50 * time.Millisecond})

	report, err := inst.Install(context.Background(), e, requirements(t, "pkgA"))
	require.NoError(t, err)

	assert.Equal(t, installer.StatusFailed, report.Results[0].Status)
	assert.ErrorIs(t, report.Results[0].Err, core.ErrTransient)
	assert.Greater(t, report.Results[0].Attempts, 1)
}

func TestInstallStopsOnCancellation(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	fb := &fakeBackend{catalog: map[string]string{"pkga": "1.0", "pkgb": "1.0", "pkgc": "1.0"}}
	fb.onInstall = func(req manifest.Requirement) {
		if req.Key() == "pkga" {
			cancel()
		}
	}

	report, err := installer.New(fb, m, nil).Install(ctx, e, requirements(t, "pkgA", "pkgB", "pkgC"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	require.Len(t, report.Results, 3)
	assert.Equal(t, installer.StatusInstalled, report.Results[0].Status)
	assert.Equal(t, installer.StatusFailed, report.Results[1].Status)
	assert.Equal(t, installer.StatusFailed, report.Results[2].Status)
	assert.ErrorIs(t, report.Results[2].Err, context.Canceled)
	assert.Equal(t, []string{"pkgA"}, fb.calls)
}

func TestInstallEmptyManifest(t *testing.T) {
	t.Parallel()

	m, e := activeEnv(t)
	fb := &fakeBackend{}

	report, err := installer.New(fb, m, nil).Install(context.Background(), e, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.False(t, report.Failed())
}
