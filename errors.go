// errors.go
package envboot

import "github.com/arc-language/envboot/pkg/core"

var (
	// ErrManifestNotFound indicates the manifest path does not exist
	ErrManifestNotFound = core.ErrManifestNotFound

	// ErrManifestParse indicates a manifest line is not a valid requirement
	ErrManifestParse = core.ErrManifestParse

	// ErrEnvironmentAlreadyExists indicates the target path is already taken
	ErrEnvironmentAlreadyExists = core.ErrEnvironmentAlreadyExists

	// ErrEnvironmentAlreadyActive indicates another activation is in effect
	ErrEnvironmentAlreadyActive = core.ErrEnvironmentAlreadyActive

	// ErrEnvironmentNotActive indicates the environment must be activated first
	ErrEnvironmentNotActive = core.ErrEnvironmentNotActive

	// ErrEnvironmentNotFound indicates the path is not a valid environment
	ErrEnvironmentNotFound = core.ErrEnvironmentNotFound

	// ErrPermissionDenied indicates a filesystem permission failure
	ErrPermissionDenied = core.ErrPermissionDenied

	// ErrIO indicates any other filesystem failure
	ErrIO = core.ErrIO

	// ErrPackageInstallFailure indicates a single requirement failed to install
	ErrPackageInstallFailure = core.ErrPackageInstallFailure

	// ErrPackageNotFound indicates the package was not found
	ErrPackageNotFound = core.ErrPackageNotFound

	// ErrBackendNotAvailable indicates the backend is not available
	ErrBackendNotAvailable = core.ErrBackendNotAvailable
)

// Error wraps an error with additional context
type Error = core.Error
