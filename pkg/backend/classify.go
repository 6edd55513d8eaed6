// pkg/backend/classify.go
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arc-language/envboot/pkg/core"
)

// failurePatterns maps installer output fragments to error kinds
type failurePatterns struct {
	notFound  []string
	transient []string
}

// classify turns a failed command into an error the installer can act on:
// ErrPackageNotFound, ErrTransient (retried) or a plain failure.
func classify(op, subject string, out Output, err error, p failurePatterns) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	text := out.Combined()
	msg := lastLine(out.Stderr)
	if msg == "" {
		msg = lastLine(out.Stdout)
	}
	if msg == "" {
		msg = err.Error()
	}

	for _, pattern := range p.notFound {
		if strings.Contains(text, pattern) {
			return &core.Error{Op: op, Package: subject, Err: fmt.Errorf("%w: %s", core.ErrPackageNotFound, msg)}
		}
	}
	for _, pattern := range p.transient {
		if strings.Contains(text, pattern) {
			return &core.Error{Op: op, Package: subject, Err: fmt.Errorf("%w: %s", core.ErrTransient, msg)}
		}
	}
	return &core.Error{Op: op, Package: subject, Err: fmt.Errorf("%s: %w", msg, err)}
}
