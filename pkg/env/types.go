// pkg/env/types.go
package env

import (
	"context"
)

// State is the lifecycle position of an environment
type State string

const (
	StateUninitialized State = "uninitialized"
	StateCreated       State = "created"
	StateActivated     State = "activated"
	StateDeactivated   State = "deactivated"
)

// Environment represents an isolated runtime root and its metadata
type Environment struct {
	Name      string            `json:"name"`
	Root      string            `json:"-"` // Absolute path, taken from where the metadata was found
	Backend   string            `json:"backend"`
	Python    string            `json:"python,omitempty"`
	Packages  map[string]string `json:"packages"` // name -> version
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at,omitempty"`

	// ActivatedAt is the time of the last activation
	ActivatedAt string `json:"activated_at,omitempty"`
}

// Provisioner lays out the runtime inside a freshly created root
// (python -m venv, uv venv, or a bare directory skeleton).
type Provisioner interface {
	Name() string
	Provision(ctx context.Context, root string) error
}

// CreateOptions configures Create
type CreateOptions struct {
	// Exclusive makes Create fail with ErrEnvironmentAlreadyExists instead
	// of returning an existing environment.
	Exclusive bool

	// Provisioner populates the root; nil leaves it empty.
	Provisioner Provisioner

	// Python is recorded in the metadata.
	Python string
}

// Layout describes where things live inside an environment root
type Layout struct {
	Bin          string // Relative path to executables
	SitePackages string // Relative path to installed packages
	Python       string // Relative path to the interpreter
}

// change is one process variable set (value != nil) or unset by an activation
type change struct {
	key   string
	value *string
}

// Activation is the handle returned by Activate. Release restores the
// process variables it changed.
type Activation struct {
	Env *Environment

	manager  *Manager
	applied  []change
	previous map[string]*string
	released bool
}

func strPtr(s string) *string {
	return &s
}
