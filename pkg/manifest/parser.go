// pkg/manifest/parser.go
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/arc-language/envboot/pkg/core"
)

const (
	commentMarker = '#'
	maxLineLength = 1 << 20
)

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	versionPattern = regexp.MustCompile(`^[A-Za-z0-9*][A-Za-z0-9.*+!_-]*$`)
)

// pyproject is the subset of pyproject.toml we read
type pyproject struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

// Read parses the manifest at path into requirements in file order.
// Files ending in .toml are read as pyproject.toml.
func Read(path string) ([]Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrManifestNotFound, path)
		}
		return nil, core.FSError("read manifest", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return parseTOML(path, data)
	}
	return Parse(path, bytes.NewReader(data))
}

// Parse reads requirements from r. Blank lines and lines starting with '#'
// are skipped; source names the input in errors.
func Parse(source string, r io.Reader) ([]Requirement, error) {
	var reqs []Requirement

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLength)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		text := stripComment(line)
		if text == "" {
			continue
		}

		req, err := ParseRequirement(text)
		if err != nil {
			return nil, withLocation(err, source, lineNo)
		}
		req.Line = lineNo
		req.Source = source
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &ParseError{Path: source, Line: lineNo + 1, Reason: fmt.Sprintf("line longer than %d bytes", maxLineLength)}
		}
		return nil, core.FSError("read manifest", source, err)
	}

	return reqs, nil
}

// ParseRequirement parses a single "<name>[<operator><version>]" string
func ParseRequirement(text string) (Requirement, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Requirement{}, &ParseError{Text: text, Reason: "empty requirement"}
	}

	name, rest := text, ""
	if i := strings.IndexAny(text, "=!<>~"); i >= 0 {
		name, rest = strings.TrimSpace(text[:i]), text[i:]
	}

	if name == "" {
		return Requirement{}, &ParseError{Text: text, Reason: "missing package name"}
	}
	if !namePattern.MatchString(name) {
		return Requirement{}, &ParseError{Text: text, Reason: fmt.Sprintf("invalid package name %q", name)}
	}

	req := Requirement{Name: name}
	if rest == "" {
		return req, nil
	}

	op, ok := matchOperator(rest)
	if !ok {
		return Requirement{}, &ParseError{Text: text, Reason: "unknown comparison operator"}
	}
	version := strings.TrimSpace(rest[len(op):])

	switch {
	case version == "":
		return Requirement{}, &ParseError{Text: text, Reason: fmt.Sprintf("operator %s without a version", op)}
	case strings.Contains(version, ","):
		return Requirement{}, &ParseError{Text: text, Reason: "multiple constraints are not supported"}
	case !versionPattern.MatchString(version):
		return Requirement{}, &ParseError{Text: text, Reason: fmt.Sprintf("invalid version %q", version)}
	case op == OpCompatible && !strings.Contains(version, "."):
		return Requirement{}, &ParseError{Text: text, Reason: "~= needs at least two release segments"}
	}

	req.Op = op
	req.Version = version
	return req, nil
}

func parseTOML(path string, data []byte) ([]Requirement, error) {
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		perr := &ParseError{Path: path, Text: filepath.Base(path), Reason: err.Error()}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, _ = derr.Position()
		}
		return nil, perr
	}

	reqs := make([]Requirement, 0, len(doc.Project.Dependencies))
	for i, dep := range doc.Project.Dependencies {
		req, err := ParseRequirement(dep)
		if err != nil {
			return nil, withLocation(err, path, i+1)
		}
		req.Line = i + 1
		req.Source = path
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func matchOperator(s string) (Operator, bool) {
	for _, op := range operators {
		if strings.HasPrefix(s, string(op)) {
			return op, true
		}
	}
	return OpNone, false
}

// stripComment drops comment lines and trailing " # ..." comments
func stripComment(line string) string {
	text := strings.TrimSpace(line)
	if text == "" || text[0] == commentMarker {
		return ""
	}
	for i := 1; i < len(text); i++ {
		if text[i] == commentMarker && (text[i-1] == ' ' || text[i-1] == '\t') {
			return strings.TrimSpace(text[:i])
		}
	}
	return text
}

func withLocation(err error, source string, line int) error {
	var perr *ParseError
	if errors.As(err, &perr) {
		perr.Path = source
		perr.Line = line
		return perr
	}
	return err
}
