// pkg/backend/archive.go
package backend

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"
	"zombiezen.com/go/nix/nar"

	"github.com/arc-language/envboot/pkg/core"
	"github.com/arc-language/envboot/pkg/env"
	"github.com/arc-language/envboot/pkg/manifest"
)

const (
	tarXZSuffix = ".tar.xz"
	narXZSuffix = ".nar.xz"

	distInfoSuffix = ".dist-info"
	installerName  = "envboot"
)

// ArchiveBackend installs packages from a directory of prebuilt archives
// named <name>-<version>.tar.xz or <name>-<version>.nar.xz. It needs no
// interpreter and no network.
type ArchiveBackend struct {
	config *Config
}

// archive is one candidate file in the archive directory
type archive struct {
	Name    string
	Version string
	Path    string
}

// NewArchiveBackend creates a new archive backend
func NewArchiveBackend(config *Config) *ArchiveBackend {
	return &ArchiveBackend{config: config.withDefaults()}
}

// Name returns the backend name
func (b *ArchiveBackend) Name() string {
	return string(BackendArchive)
}

// IsAvailable checks if the archive directory exists
func (b *ArchiveBackend) IsAvailable() bool {
	if b.config.ArchiveDir == "" {
		return false
	}
	info, err := os.Stat(b.config.ArchiveDir)
	return err == nil && info.IsDir()
}

// Provision creates the bin and site-packages skeleton
func (b *ArchiveBackend) Provision(_ context.Context, root string) error {
	layout := env.GetLayout()
	for _, dir := range []string{layout.Bin, layout.SitePackages} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return core.FSError("provision", root, err)
		}
	}
	return nil
}

// Installed lists the packages recorded by dist-info directories
func (b *ArchiveBackend) Installed(_ context.Context, e *env.Environment) ([]core.Package, error) {
	entries, err := os.ReadDir(e.SitePackagesDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, core.FSError("list", e.Root, err)
	}

	var pkgs []core.Package
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), distInfoSuffix)
		if !ok || !entry.IsDir() {
			continue
		}
		name, version, ok := strings.Cut(base, "-")
		if !ok {
			continue
		}
		pkgs = append(pkgs, core.Package{Name: name, Version: version})
	}
	return pkgs, nil
}

// Install extracts the newest archive satisfying req into site-packages
func (b *ArchiveBackend) Install(ctx context.Context, e *env.Environment, req manifest.Requirement) (Outcome, error) {
	candidates, err := b.candidates(req)
	if err != nil {
		return Outcome{}, err
	}
	if len(candidates) == 0 {
		return Outcome{}, &core.Error{
			Op:      "install",
			Package: req.String(),
			Err:     fmt.Errorf("%w: no archive in %s satisfies %s", core.ErrPackageNotFound, b.config.ArchiveDir, req),
		}
	}
	chosen := candidates[len(candidates)-1]

	site := e.SitePackagesDir()
	marker := filepath.Join(site, distInfoName(chosen.Name, chosen.Version))
	if info, err := os.Stat(marker); err == nil && info.IsDir() {
		return Outcome{Version: chosen.Version, AlreadySatisfied: true}, nil
	}

	b.config.Logger.Info("extracting archive", "archive", filepath.Base(chosen.Path), "dest", site)

	if err := os.MkdirAll(site, 0755); err != nil {
		return Outcome{}, core.FSError("install", site, err)
	}

	var count int
	switch {
	case strings.HasSuffix(chosen.Path, narXZSuffix):
		count, err = extractNARXZ(ctx, chosen.Path, site)
	default:
		count, err = extractTarXZ(ctx, chosen.Path, site)
	}
	if err != nil {
		return Outcome{}, &core.Error{Op: "install", Package: req.String(), Err: err}
	}
	b.config.Logger.Debug("extraction complete", "files", count)

	if err := b.replaceMarker(site, chosen); err != nil {
		return Outcome{}, err
	}
	return Outcome{Version: chosen.Version}, nil
}

// candidates returns the archives for req, oldest first
func (b *ArchiveBackend) candidates(req manifest.Requirement) ([]archive, error) {
	entries, err := os.ReadDir(b.config.ArchiveDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &core.Error{Op: "install", Package: req.String(), Err: fmt.Errorf("%w: archive directory %s does not exist", core.ErrBackendNotAvailable, b.config.ArchiveDir)}
		}
		return nil, core.FSError("install", b.config.ArchiveDir, err)
	}

	var out []archive
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		a, ok := parseArchiveName(entry.Name())
		if !ok || manifest.NormalizeName(a.Name) != req.Key() {
			continue
		}
		if match, decided := req.Match(a.Version); !match || !decided {
			continue
		}
		a.Path = filepath.Join(b.config.ArchiveDir, entry.Name())
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return manifest.CompareVersions(out[i].Version, out[j].Version) < 0
	})
	return out, nil
}

// replaceMarker drops dist-info directories of other versions of the same
// package and writes the new one
func (b *ArchiveBackend) replaceMarker(site string, a archive) error {
	entries, err := os.ReadDir(site)
	if err != nil {
		return core.FSError("install", site, err)
	}
	key := manifest.NormalizeName(a.Name)
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), distInfoSuffix)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(base, "-")
		if manifest.NormalizeName(name) == key {
			if err := os.RemoveAll(filepath.Join(site, entry.Name())); err != nil {
				return core.FSError("install", site, err)
			}
		}
	}

	dir := filepath.Join(site, distInfoName(a.Name, a.Version))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return core.FSError("install", dir, err)
	}
	metadata := fmt.Sprintf("Metadata-Version: 2.1\nName: %s\nVersion: %s\n", a.Name, a.Version)
	if err := os.WriteFile(filepath.Join(dir, "METADATA"), []byte(metadata), 0644); err != nil {
		return core.FSError("install", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "INSTALLER"), []byte(installerName+"\n"), 0644); err != nil {
		return core.FSError("install", dir, err)
	}
	return nil
}

// distInfoName follows the wheel convention: name separators become "_"
func distInfoName(name, version string) string {
	return strings.ReplaceAll(manifest.NormalizeName(name), "-", "_") + "-" + version + distInfoSuffix
}

// parseArchiveName splits "my-pkg-1.2.0.tar.xz" into name and version
func parseArchiveName(file string) (archive, bool) {
	base, ok := strings.CutSuffix(file, tarXZSuffix)
	if !ok {
		base, ok = strings.CutSuffix(file, narXZSuffix)
	}
	if !ok {
		return archive{}, false
	}
	i := strings.LastIndex(base, "-")
	if i <= 0 || i == len(base)-1 {
		return archive{}, false
	}
	return archive{Name: base[:i], Version: base[i+1:]}, true
}

// localTarget resolves an archive member path inside dest, rejecting
// absolute paths and ".." escapes
func localTarget(dest, name string) (string, error) {
	clean := strings.TrimPrefix(filepath.ToSlash(name), "./")
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", nil
	}
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	return filepath.Join(dest, filepath.FromSlash(clean)), nil
}

// extractTarXZ extracts a .tar.xz archive into dest
func extractTarXZ(ctx context.Context, path, dest string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	xzReader, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return 0, fmt.Errorf("creating xz reader: %w", err)
	}
	tarReader := tar.NewReader(xzReader)

	fileCount := 0
	for {
		if err := ctx.Err(); err != nil {
			return fileCount, err
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fileCount, fmt.Errorf("reading tar entry: %w", err)
		}

		targetPath, err := localTarget(dest, header.Name)
		if err != nil {
			return fileCount, err
		}
		if targetPath == "" {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fileCount, fmt.Errorf("creating directory %s: %w", targetPath, err)
			}
		case tar.TypeSymlink:
			if err := writeSymlink(header.Linkname, targetPath); err != nil {
				return fileCount, err
			}
		case tar.TypeReg:
			if err := writeFile(targetPath, tarReader, header.Size, os.FileMode(header.Mode)); err != nil {
				return fileCount, err
			}
			fileCount++
		}
	}

	return fileCount, nil
}

// extractNARXZ extracts an xz-compressed NAR into dest
func extractNARXZ(ctx context.Context, path, dest string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	xzReader, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return 0, fmt.Errorf("creating xz reader: %w", err)
	}
	narReader := nar.NewReader(bufio.NewReader(xzReader))

	fileCount := 0
	for {
		if err := ctx.Err(); err != nil {
			return fileCount, err
		}

		hdr, err := narReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fileCount, fmt.Errorf("reading NAR entry: %w", err)
		}

		targetPath, err := localTarget(dest, hdr.Path)
		if err != nil {
			return fileCount, err
		}
		if targetPath == "" {
			if hdr.Mode.IsDir() {
				continue
			}
			return fileCount, fmt.Errorf("NAR root must be a directory")
		}

		switch hdr.Mode.Type() {
		case fs.ModeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fileCount, fmt.Errorf("creating directory %s: %w", targetPath, err)
			}
		case fs.ModeSymlink:
			if err := writeSymlink(hdr.LinkTarget, targetPath); err != nil {
				return fileCount, err
			}
		case 0:
			perm := os.FileMode(0644)
			if hdr.Mode&0111 != 0 {
				perm = 0755
			}
			if err := writeFile(targetPath, narReader, hdr.Size, perm); err != nil {
				return fileCount, err
			}
			fileCount++
		}
	}

	return fileCount, nil
}

func writeFile(targetPath string, r io.Reader, size int64, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm.Perm())
	if err != nil {
		return fmt.Errorf("creating file %s: %w", targetPath, err)
	}

	written, err := io.Copy(outFile, r)
	closeErr := outFile.Close()
	if err != nil {
		return fmt.Errorf("writing file %s: %w", targetPath, err)
	}
	if closeErr != nil {
		return fmt.Errorf("writing file %s: %w", targetPath, closeErr)
	}
	if written != size {
		return fmt.Errorf("file size mismatch for %s: expected %d, got %d", targetPath, size, written)
	}
	return nil
}

func writeSymlink(linkTarget, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("creating parent directory for symlink: %w", err)
	}
	// Replace a link left by a previous version
	_ = os.Remove(targetPath)
	if err := os.Symlink(linkTarget, targetPath); err != nil {
		return fmt.Errorf("creating symlink %s -> %s: %w", targetPath, linkTarget, err)
	}
	return nil
}
