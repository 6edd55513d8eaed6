// pkg/manifest/types.go
package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arc-language/envboot/pkg/core"
)

// Operator is a version comparison operator
type Operator string

const (
	OpNone       Operator = ""
	OpEqual      Operator = "=="
	OpExact      Operator = "==="
	OpNotEqual   Operator = "!="
	OpGreaterEq  Operator = ">="
	OpLessEq     Operator = "<="
	OpGreater    Operator = ">"
	OpLess       Operator = "<"
	OpCompatible Operator = "~="
)

// operators is ordered so that longer tokens are matched first
var operators = []Operator{OpExact, OpEqual, OpNotEqual, OpGreaterEq, OpLessEq, OpCompatible, OpGreater, OpLess}

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// Requirement is a package name plus an optional version constraint
type Requirement struct {
	Name    string   // Package name as written
	Op      Operator // Empty when unconstrained
	Version string   // Empty when unconstrained
	Line    int      // 1-based position in the manifest, 0 if parsed standalone
	Source  string   // Manifest path, empty if parsed standalone
}

// Constraint returns the operator and version, e.g. "==1.0"
func (r Requirement) Constraint() string {
	if r.Op == OpNone {
		return ""
	}
	return string(r.Op) + r.Version
}

// HasConstraint reports whether a version constraint is present
func (r Requirement) HasConstraint() bool {
	return r.Op != OpNone
}

// Key returns the normalized package name used for comparisons
func (r Requirement) Key() string {
	return NormalizeName(r.Name)
}

// String renders the requirement the way installers accept it
func (r Requirement) String() string {
	return r.Name + r.Constraint()
}

// Location describes where the requirement came from, for error messages
func (r Requirement) Location() string {
	if r.Source == "" {
		return r.String()
	}
	return fmt.Sprintf("%s:%d", r.Source, r.Line)
}

// NormalizeName lower-cases a package name and collapses separator runs
// into a single dash, so "Foo_Bar" and "foo-bar" compare equal.
func NormalizeName(name string) string {
	return strings.ToLower(nameSeparators.ReplaceAllString(name, "-"))
}

// ParseError reports an unparsable manifest line
type ParseError struct {
	Path   string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid requirement %q: %s", e.Text, e.Reason)
	}
	return fmt.Sprintf("%s:%d: invalid requirement %q: %s", e.Path, e.Line, e.Text, e.Reason)
}

// Is makes errors.Is(err, core.ErrManifestParse) match
func (e *ParseError) Is(target error) bool {
	return target == core.ErrManifestParse
}
