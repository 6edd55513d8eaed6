// pkg/backend/exec.go
package backend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Output is what a command wrote
type Output struct {
	Stdout string
	Stderr string
}

// Combined returns stdout followed by stderr
func (o Output) Combined() string {
	return o.Stdout + o.Stderr
}

// Runner executes external commands. Implementations return the captured
// output together with any error, including on a non-zero exit.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
	LookPath(name string) (string, error)
}

type execRunner struct{}

// ExecRunner runs commands with os/exec
func ExecRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// lastLine returns the last non-empty line of s, used to keep error
// messages short
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
