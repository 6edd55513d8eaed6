// internal/cli/exit.go
package cli

import (
	"errors"
	"fmt"
)

const (
	// ExitOK means every step and every requirement succeeded
	ExitOK = 0
	// ExitFailure means at least one requirement failed to install
	ExitFailure = 1
	// ExitUsage means a precondition or usage error (bad path, missing
	// manifest, wrong state, invalid arguments)
	ExitUsage = 2
)

// ExitError signals a specific exit code without forcing os.Exit in RunE handlers
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by the command tree to a process exit
// code. Anything that is not an ExitError aborted a subcommand before it
// could report, which is a precondition or usage error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}
