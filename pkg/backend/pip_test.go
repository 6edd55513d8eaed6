package backend_test

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
)

type call struct {
	name string
	args []string
}

type response struct {
	out backend.Output
	err error
}

// fakeRunner replays canned responses keyed by the first argument that
// identifies the command ("venv", "list", "install")
type fakeRunner struct {
	calls     []call
	responses map[string][]response
	paths     map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (backend.Output, error) {
	f.calls = append(f.calls, call{name: name, args: args})

	key := ""
	for _, a := range args {
		if a == "venv" || a == "list" || a == "install" {
			key = a
			break
		}
	}
	queue := f.responses[key]
	if len(queue) == 0 {
		return backend.Output{}, nil
	}
	f.responses[key] = queue[1:]
	return queue[0].out, queue[0].err
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.paths[name] {
		return "/usr/bin/" + name, nil
	}
	return "", exec.ErrNotFound
}

func testEnv(t *testing.T) *env.Environment {
	t.Helper()
	return &env.Environment{Name: ".venv", Root: filepath.Join(t.TempDir(), ".venv")}
}

var errExit = errors.New("exit status 1")

func TestPipProvisionRunsVenv(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{responses: map[string][]response{}}
	b := backend.NewPipBackend(&backend.Config{Python: "python3.12", Runner: runner})

	require.NoError(t, b.Provision(context.Background(), "/work/.venv"))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "python3.12", runner.calls[0].name)
	assert.Equal(t, []string{"-m", "venv", "/work/.venv"}, runner.calls[0].args)
}

func TestPipProvisionFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{responses: map[string][]response{
		"venv": {{out: backend.Output{Stderr: "Error: ensurepip is not available\n"}, err: errExit}},
	}}
	b := backend.NewPipBackend(&backend.Config{Runner: runner})

	err := b.Provision(context.Background(), "/work/.venv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensurepip is not available")
}

func TestPipInstalledParsesJSON(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{responses: map[string][]response{
		"list": {{out: backend.Output{Stdout: `[{"name": "pip", "version": "24.0"}, {"name": "pkgA", "version": "1.0"}]`}}},
	}}
	b := backend.NewPipBackend(&backend.Config{Runner: runner})
	e := testEnv(t)

	pkgs, err := b.Installed(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, []core.Package{{Name: "pip", Version: "24.0"}, {Name: "pkgA", Version: "1.0"}}, pkgs)
	assert.Equal(t, e.PythonPath(), runner.calls[0].name)
}

func TestPipInstallOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stdout  string
		want    backend.Outcome
		reqText string
	}{
		{
			name:    "installed",
			reqText: "pkgA==1.0",
			stdout:  "Collecting pkgA==1.0\nInstalling collected packages: pkgA\nSuccessfully installed dep-0.3 pkgA-1.0\n",
			want:    backend.Outcome{Version: "1.0"},
		},
		{
			name:    "normalized name",
			reqText: "Mid_Pkg",
			stdout:  "Successfully installed mid-pkg-2.1.0\n",
			want:    backend.Outcome{Version: "2.1.0"},
		},
		{
			name:    "already satisfied",
			reqText: "pkgA>=1.0",
			stdout:  "Requirement already satisfied: pkgA>=1.0 in ./.venv/lib/python3.12/site-packages (1.4)\n",
			want:    backend.Outcome{Version: "1.4", AlreadySatisfied: true},
		},
		{
			name:    "silent",
			reqText: "pkgA",
			stdout:  "",
			want:    backend.Outcome{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{responses: map[string][]response{
				"install": {{out: backend.Output{Stdout: tt.stdout}}},
			}}
			b := backend.NewPipBackend(&backend.Config{Runner: runner})

			got, err := b.Install(context.Background(), testEnv(t), mustRequirement(t, tt.reqText))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipInstallPassesIndexURL(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{responses: map[string][]response{}}
	b := backend.NewPipBackend(&backend.Config{Runner: runner, IndexURL: "https://mirror.example/simple"})

	_, err := b.Install(context.Background(), testEnv(t), mustRequirement(t, "pkgA == 1.0"))
	require.NoError(t, err)

	args := strings.Join(runner.calls[0].args, " ")
	assert.Contains(t, args, "--index-url https://mirror.example/simple")
	assert.True(t, strings.HasSuffix(args, "pkgA==1.0"))
}

func TestPipInstallClassifiesFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"not found", "ERROR: Could not find a version that satisfies the requirement nope\nERROR: No matching distribution found for nope\n", core.ErrPackageNotFound},
		{"network", "WARNING: Retrying after connection broken by 'NewConnectionError'\n", core.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{responses: map[string][]response{
				"install": {{out: backend.Output{Stderr: tt.stderr}, err: errExit}},
			}}
			b := backend.NewPipBackend(&backend.Config{Runner: runner})

			_, err := b.Install(context.Background(), testEnv(t), mustRequirement(t, "nope"))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	runner := &fakeRunner{responses: map[string][]response{
		"install": {{out: backend.Output{Stderr: "ERROR: something odd\n"}, err: errExit}},
	}}
	b := backend.NewPipBackend(&backend.Config{Runner: runner})

	_, err := b.Install(context.Background(), testEnv(t), mustRequirement(t, "odd"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errExit)
	assert.NotErrorIs(t, err, core.ErrTransient)
	assert.Contains(t, err.Error(), "something odd")
}

func TestPipAvailability(t *testing.T) {
	t.Parallel()

	present := backend.NewPipBackend(&backend.Config{Runner: &fakeRunner{paths: map[string]bool{"python3": true}}})
	missing := backend.NewPipBackend(&backend.Config{Python: "python9", Runner: &fakeRunner{paths: map[string]bool{"python3": true}}})

	assert.True(t, present.IsAvailable())
	assert.False(t, missing.IsAvailable())
}

func TestUVInstall(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{responses: map[string][]response{
		"install": {
			{out: backend.Output{Stderr: "Resolved 2 packages in 10ms\nInstalled 2 packages in 3ms\n + dep==0.3\n + pkga==1.0\n"}},
			{out: backend.Output{Stderr: "Audited 1 package in 1ms\n"}},
			{out: backend.Output{Stderr: "  x No solution found when resolving dependencies:\n"}, err: errExit},
		},
	}}
	b := backend.NewUVBackend(&backend.Config{Runner: runner})
	e := testEnv(t)

	got, err := b.Install(context.Background(), e, mustRequirement(t, "pkgA==1.0"))
	require.NoError(t, err)
	assert.Equal(t, backend.Outcome{Version: "1.0"}, got)
	assert.Equal(t, "uv", runner.calls[0].name)
	assert.Equal(t, []string{"pip", "install", "--python", e.PythonPath(), "pkgA==1.0"}, runner.calls[0].args)

	got, err = b.Install(context.Background(), e, mustRequirement(t, "pkgA"))
	require.NoError(t, err)
	assert.True(t, got.AlreadySatisfied)

	_, err = b.Install(context.Background(), e, mustRequirement(t, "pkgZ"))
	assert.ErrorIs(t, err, core.ErrPackageNotFound)
}

func TestUVProvision(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{responses: map[string][]response{}}
	b := backend.NewUVBackend(&backend.Config{Python: "3.12", Runner: runner})

	require.NoError(t, b.Provision(context.Background(), "/work/.venv"))
	assert.Equal(t, []string{"venv", "--quiet", "--python", "3.12", "/work/.venv"}, runner.calls[0].args)
}
