package backend_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"zombiezen.com/go/nix/nar"

	"github.com/arc-language/envboot/pkg/backend"
	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
	"github.com/arc-language/envboot/pkg/manifest"
)

type tarEntry struct {
	name     string
	body     string
	linkname string
	dir      bool
}

func writeTarXZ(t *testing.T, path string, entries []tarEntry) {
	t.Helper()

	var buf bytes.Buffer
	xzWriter, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(xzWriter)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		switch {
		case e.dir:
			hdr = &tar.Header{Name: e.name, Mode: 0o755, Typeflag: tar.TypeDir}
		case e.linkname != "":
			hdr = &tar.Header{Name: e.name, Linkname: e.linkname, Typeflag: tar.TypeSymlink}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, xzWriter.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

type narEntry struct {
	hdr  nar.Header
	body string
}

// writeNARXZ writes entries, which must be in NAR order, as an xz-compressed NAR
func writeNARXZ(t *testing.T, path string, entries []narEntry) {
	t.Helper()

	var buf bytes.Buffer
	xzWriter, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	nw := nar.NewWriter(xzWriter)

	for _, e := range entries {
		hdr := e.hdr
		if hdr.Mode.Type() == 0 {
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, nw.WriteHeader(&hdr))
		if hdr.Mode.Type() == 0 {
			_, err := nw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, nw.Close())
	require.NoError(t, xzWriter.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writePackage(t *testing.T, dir, name, version string) {
	t.Helper()

	module := manifest.NormalizeName(name)
	writeTarXZ(t, filepath.Join(dir, name+"-"+version+".tar.xz"), []tarEntry{
		{name: module + "/", dir: true},
		{name: module + "/__init__.py", body: "__version__ = \"" + version + "\"\n"},
	})
}

func newArchiveEnv(t *testing.T) (*backend.ArchiveBackend, *env.Environment, string) {
	t.Helper()

	archives := t.TempDir()
	b := backend.NewArchiveBackend(&backend.Config{ArchiveDir: archives})

	m := env.NewManager(env.MapEnviron{}, nil)
	e, err := m.Create(context.Background(), filepath.Join(t.TempDir(), ".venv"), env.CreateOptions{Provisioner: b})
	require.NoError(t, err)
	return b, e, archives
}

func mustRequirement(t *testing.T, text string) manifest.Requirement {
	t.Helper()

	req, err := manifest.ParseRequirement(text)
	require.NoError(t, err)
	return req
}

func TestArchiveProvisionCreatesLayout(t *testing.T) {
	t.Parallel()

	b, e, _ := newArchiveEnv(t)

	assert.Equal(t, "archive", b.Name())
	assert.Equal(t, "archive", e.Backend)
	assert.DirExists(t, e.BinDir())
	assert.DirExists(t, e.SitePackagesDir())
	assert.True(t, b.IsAvailable())
}

func TestArchiveInstallPicksNewestSatisfyingVersion(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writePackage(t, archives, "pkgA", "1.0")
	writePackage(t, archives, "pkgA", "1.2")
	writePackage(t, archives, "pkgA", "2.0")
	writePackage(t, archives, "other", "9.9")

	outcome, err := b.Install(context.Background(), e, mustRequirement(t, "pkgA<2"))
	require.NoError(t, err)
	assert.Equal(t, "1.2", outcome.Version)
	assert.False(t, outcome.AlreadySatisfied)

	data, err := os.ReadFile(filepath.Join(e.SitePackagesDir(), "pkga", "__init__.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "1.2")
	assert.FileExists(t, filepath.Join(e.SitePackagesDir(), "pkga-1.2.dist-info", "INSTALLER"))

	installed, err := b.Installed(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, []core.Package{{Name: "pkga", Version: "1.2"}}, installed)
}

func TestArchiveInstallUpgradeReplacesMarker(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writePackage(t, archives, "my-pkg", "1.0")

	_, err := b.Install(context.Background(), e, mustRequirement(t, "my_pkg==1.0"))
	require.NoError(t, err)

	writePackage(t, archives, "my-pkg", "1.1")
	outcome, err := b.Install(context.Background(), e, mustRequirement(t, "My.Pkg"))
	require.NoError(t, err)
	assert.Equal(t, "1.1", outcome.Version)

	installed, err := b.Installed(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, []core.Package{{Name: "my_pkg", Version: "1.1"}}, installed)
}

func TestArchiveInstallAlreadyPresent(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writePackage(t, archives, "pkgA", "1.0")

	_, err := b.Install(context.Background(), e, mustRequirement(t, "pkgA"))
	require.NoError(t, err)

	outcome, err := b.Install(context.Background(), e, mustRequirement(t, "pkgA==1.0"))
	require.NoError(t, err)
	assert.True(t, outcome.AlreadySatisfied)
	assert.Equal(t, "1.0", outcome.Version)
}

func TestArchiveInstallNotFound(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writePackage(t, archives, "pkgA", "1.0")

	_, err := b.Install(context.Background(), e, mustRequirement(t, "pkgB"))
	assert.ErrorIs(t, err, core.ErrPackageNotFound)

	_, err = b.Install(context.Background(), e, mustRequirement(t, "pkgA>=2"))
	assert.ErrorIs(t, err, core.ErrPackageNotFound)
}

func TestArchiveInstallMissingDirectory(t *testing.T) {
	t.Parallel()

	_, e, _ := newArchiveEnv(t)
	b := backend.NewArchiveBackend(&backend.Config{ArchiveDir: filepath.Join(t.TempDir(), "missing")})

	assert.False(t, b.IsAvailable())
	_, err := b.Install(context.Background(), e, mustRequirement(t, "pkgA"))
	assert.ErrorIs(t, err, core.ErrBackendNotAvailable)
}

func TestArchiveRejectsEscapingEntries(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writeTarXZ(t, filepath.Join(archives, "evil-1.0.tar.xz"), []tarEntry{
		{name: "../outside.txt", body: "x"},
	})

	_, err := b.Install(context.Background(), e, mustRequirement(t, "evil"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the destination")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(e.SitePackagesDir()), "outside.txt"))
}

func TestArchiveExtractsSymlinks(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writeTarXZ(t, filepath.Join(archives, "linked-0.1.tar.xz"), []tarEntry{
		{name: "./linked/real.py", body: "pass\n"},
		{name: "./linked/alias.py", linkname: "real.py"},
	})

	_, err := b.Install(context.Background(), e, mustRequirement(t, "linked"))
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(e.SitePackagesDir(), "linked", "alias.py"))
	require.NoError(t, err)
	assert.Equal(t, "real.py", target)
}

func TestArchiveInstallHonorsCancellation(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writePackage(t, archives, "pkgA", "1.0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Install(ctx, e, mustRequirement(t, "pkgA"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveInstallsNARArchive(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writeNARXZ(t, filepath.Join(archives, "narpkg-1.5.nar.xz"), []narEntry{
		{hdr: nar.Header{Mode: fs.ModeDir | 0o555}},
		{hdr: nar.Header{Path: "narpkg", Mode: fs.ModeDir | 0o555}},
		{hdr: nar.Header{Path: "narpkg/__init__.py", Mode: 0o444}, body: "VERSION = \"1.5\"\n"},
		{hdr: nar.Header{Path: "narpkg/alias.py", Mode: fs.ModeSymlink | 0o777, LinkTarget: "__init__.py"}},
		{hdr: nar.Header{Path: "narpkg/run", Mode: 0o555}, body: "#!/bin/sh\necho run\n"},
	})

	outcome, err := b.Install(context.Background(), e, mustRequirement(t, "narpkg>=1"))
	require.NoError(t, err)
	assert.Equal(t, "1.5", outcome.Version)

	pkgDir := filepath.Join(e.SitePackagesDir(), "narpkg")
	data, err := os.ReadFile(filepath.Join(pkgDir, "__init__.py"))
	require.NoError(t, err)
	assert.Equal(t, "VERSION = \"1.5\"\n", string(data))

	info, err := os.Stat(filepath.Join(pkgDir, "__init__.py"))
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o111, "plain files are not executable")

	info, err = os.Stat(filepath.Join(pkgDir, "run"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "executable bit survives extraction")

	target, err := os.Readlink(filepath.Join(pkgDir, "alias.py"))
	require.NoError(t, err)
	assert.Equal(t, "__init__.py", target)

	assert.DirExists(t, filepath.Join(e.SitePackagesDir(), "narpkg-1.5.dist-info"))
	installed, err := b.Installed(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, []core.Package{{Name: "narpkg", Version: "1.5"}}, installed)
}

func TestArchiveRejectsSingleFileNAR(t *testing.T) {
	t.Parallel()

	b, e, archives := newArchiveEnv(t)
	writeNARXZ(t, filepath.Join(archives, "lonely-1.0.nar.xz"), []narEntry{
		{hdr: nar.Header{Mode: 0o444}, body: "just a file\n"},
	})

	_, err := b.Install(context.Background(), e, mustRequirement(t, "lonely"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NAR root must be a directory")
	assert.NoDirExists(t, filepath.Join(e.SitePackagesDir(), "lonely-1.0.dist-info"))
}
