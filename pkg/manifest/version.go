// pkg/manifest/version.go
package manifest

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Match reports whether an installed version satisfies the requirement.
// decided is false when the two versions cannot be compared locally; the
// caller should then let the backend decide.
func (r Requirement) Match(version string) (ok, decided bool) {
	if !r.HasConstraint() {
		return true, true
	}
	if version == "" {
		return false, true
	}

	switch r.Op {
	case OpExact:
		return version == r.Version, true
	case OpEqual, OpNotEqual:
		if prefix, wild := strings.CutSuffix(r.Version, ".*"); wild {
			match := version == prefix || strings.HasPrefix(version, prefix+".")
			return match == (r.Op == OpEqual), true
		}
	case OpCompatible:
		return matchCompatible(r.Version, version)
	}

	want, errWant := semver.NewVersion(r.Version)
	have, errHave := semver.NewVersion(version)
	if errWant != nil || errHave != nil {
		switch r.Op {
		case OpEqual:
			return version == r.Version, true
		case OpNotEqual:
			return version != r.Version, true
		}
		return false, false
	}

	cmp := have.Compare(want)
	switch r.Op {
	case OpEqual:
		return cmp == 0, true
	case OpNotEqual:
		return cmp != 0, true
	case OpGreaterEq:
		return cmp >= 0, true
	case OpLessEq:
		return cmp <= 0, true
	case OpGreater:
		return cmp > 0, true
	case OpLess:
		return cmp < 0, true
	}
	return false, false
}

// matchCompatible implements ~=: ~=1.4.2 means >=1.4.2 and ==1.4.*
func matchCompatible(base, version string) (bool, bool) {
	segments := strings.Split(base, ".")
	if len(segments) < 2 {
		return false, false
	}

	prefix := segments[:len(segments)-1]
	last, err := strconv.Atoi(prefix[len(prefix)-1])
	if err != nil {
		return false, false
	}
	upperSegments := append(append([]string{}, prefix[:len(prefix)-1]...), strconv.Itoa(last+1))

	lower, err := semver.NewVersion(base)
	if err != nil {
		return false, false
	}
	upper, err := semver.NewVersion(strings.Join(upperSegments, "."))
	if err != nil {
		return false, false
	}
	have, err := semver.NewVersion(version)
	if err != nil {
		return false, false
	}

	return !have.LessThan(lower) && have.LessThan(upper), true
}

// CompareVersions orders two version strings, semantically where both
// parse and lexically otherwise.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}
