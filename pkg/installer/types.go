// pkg/installer/types.go
package installer

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/arc-language/envboot/pkg/manifest"
)

// Status is the outcome of one requirement
type Status string

const (
	StatusInstalled        Status = "installed"
	StatusAlreadySatisfied Status = "already-satisfied"
	StatusFailed           Status = "failed"
)

// Result is the outcome of installing one requirement
type Result struct {
	Requirement manifest.Requirement `json:"-"`
	Name        string               `json:"name"`
	Constraint  string               `json:"constraint,omitempty"`
	Status      Status               `json:"status"`
	Version     string               `json:"version,omitempty"`
	Message     string               `json:"message,omitempty"`
	Attempts    int                  `json:"attempts,omitempty"`

	// Err is set for failed results and wraps core.ErrPackageInstallFailure
	Err error `json:"-"`
}

// Report collects one Result per requirement, in manifest order
type Report struct {
	Environment string   `json:"environment"`
	Backend     string   `json:"backend"`
	Results     []Result `json:"results"`
}

// Failed reports whether any requirement failed
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Counts summarises the report
func (r *Report) Counts() (installed, satisfied, failed int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusInstalled:
			installed++
		case StatusAlreadySatisfied:
			satisfied++
		case StatusFailed:
			failed++
		}
	}
	return installed, satisfied, failed
}

// Err joins the errors of all failed results, nil if none failed
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Config configures the installer
type Config struct {
	// RetryInterval is the wait between attempts after a transient failure
	RetryInterval time.Duration

	// RetryTimeout bounds all attempts for one requirement; zero disables retries
	RetryTimeout time.Duration

	// Logger for progress output
	Logger *log.Logger
}
