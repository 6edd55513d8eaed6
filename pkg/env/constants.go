// pkg/env/constants.go
package env

import (
	"path/filepath"
	"runtime"
)

const (
	// MetadataFile marks a directory as an envboot environment
	MetadataFile = "envboot.json"

	// Process variables touched by activation. The _OLD_ names match the
	// ones Python's own venv activate scripts use.
	VarVirtualEnv    = "VIRTUAL_ENV"
	VarPath          = "PATH"
	VarPythonHome    = "PYTHONHOME"
	VarOldPath       = "_OLD_VIRTUAL_PATH"
	VarOldPythonHome = "_OLD_VIRTUAL_PYTHONHOME"
)

// GetLayout returns the directory structure of an environment on this OS
func GetLayout() Layout {
	switch runtime.GOOS {
	case "windows":
		return getWindowsLayout()
	default:
		return getPosixLayout()
	}
}

// venv on Windows uses Scripts/ and Lib/
func getWindowsLayout() Layout {
	return Layout{
		Bin:          "Scripts",
		SitePackages: filepath.Join("Lib", "site-packages"),
		Python:       filepath.Join("Scripts", "python.exe"),
	}
}

func getPosixLayout() Layout {
	return Layout{
		Bin:          "bin",
		SitePackages: filepath.Join("lib", "site-packages"),
		Python:       filepath.Join("bin", "python"),
	}
}

// BinDir returns the executables directory of the environment
func (e *Environment) BinDir() string {
	return filepath.Join(e.Root, GetLayout().Bin)
}

// SitePackagesDir returns the installed-packages directory of the environment
func (e *Environment) SitePackagesDir() string {
	return filepath.Join(e.Root, GetLayout().SitePackages)
}

// PythonPath returns the environment's interpreter
func (e *Environment) PythonPath() string {
	return filepath.Join(e.Root, GetLayout().Python)
}

// listSeparator splits PATH entries
func listSeparator() string {
	return string(filepath.ListSeparator)
}
