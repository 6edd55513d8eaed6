// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrManifestNotFound indicates the manifest path does not exist
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrManifestParse indicates a manifest line is not a valid requirement
	ErrManifestParse = errors.New("manifest parse error")

	// ErrEnvironmentAlreadyExists indicates the target path is already taken
	ErrEnvironmentAlreadyExists = errors.New("environment already exists")

	// ErrEnvironmentAlreadyActive indicates another activation is in effect
	ErrEnvironmentAlreadyActive = errors.New("environment already active")

	// ErrEnvironmentNotActive indicates the environment must be activated first
	ErrEnvironmentNotActive = errors.New("environment not active")

	// ErrEnvironmentNotFound indicates the path is not a valid environment
	ErrEnvironmentNotFound = errors.New("environment not found")

	// ErrPermissionDenied indicates a filesystem permission failure
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIO indicates any other filesystem failure
	ErrIO = errors.New("i/o error")

	// ErrPackageInstallFailure indicates a single requirement failed to install
	ErrPackageInstallFailure = errors.New("package install failed")

	// ErrPackageNotFound indicates the backend has no distribution for a requirement
	ErrPackageNotFound = errors.New("package not found")

	// ErrBackendNotAvailable indicates the backend is not available
	ErrBackendNotAvailable = errors.New("backend not available")

	// ErrTransient marks backend failures worth retrying (network hiccups)
	ErrTransient = errors.New("transient failure")
)

// Error wraps an error with additional context
type Error struct {
	Op      string // Operation that failed
	Package string // Requirement or path if applicable
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FSError classifies a filesystem error into ErrPermissionDenied or ErrIO,
// keeping the original error in the chain.
func FSError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	kind := ErrIO
	if errors.Is(err, fs.ErrPermission) {
		kind = ErrPermissionDenied
	}
	return &Error{Op: op, Package: path, Err: fmt.Errorf("%w: %w", kind, err)}
}
