// Package version parses and orders dotted numeric version strings such as
// the "1.2.3.4" versions carried by extension manifests.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedVersion is returned when a version string cannot be parsed.
var ErrMalformedVersion = errors.New("malformed version")

// ParseError reports which segment of a version string was rejected.
// It wraps ErrMalformedVersion so callers can use errors.Is.
type ParseError struct {
	Input   string
	Segment string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed version %q: invalid segment %q", e.Input, e.Segment)
}

// Unwrap returns ErrMalformedVersion.
func (e *ParseError) Unwrap() error { return ErrMalformedVersion }

// Version is an ordered sequence of non-negative components.
type Version []uint64

// Parse splits s on "." and parses every segment as a non-negative integer.
func Parse(s string) (Version, error) {
	segments := strings.Split(s, ".")
	v := make(Version, 0, len(segments))
	for _, seg := range segments {
		if !isDigits(seg) {
			return nil, &ParseError{Input: s, Segment: seg}
		}
		n, err := strconv.ParseUint(seg, 10, 64)
		if err != nil {
			return nil, &ParseError{Input: s, Segment: seg}
		}
		v = append(v, n)
	}
	return v, nil
}

// isDigits rejects signs, whitespace and empty segments that ParseUint would
// otherwise accept or report less clearly.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Compare returns -1, 0 or 1 when a is lower than, equal to or greater than b.
// Missing trailing components count as zero, so "1.0" and "1.0.0" are equal.
func Compare(a, b Version) int {
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		x, y := a.at(i), b.at(i)
		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}
	return 0
}

// IsGreater reports whether a is strictly greater than b.
func IsGreater(a, b Version) bool {
	return Compare(a, b) > 0
}

// IsNewer parses both strings and reports whether candidate supersedes current.
func IsNewer(candidate, current string) (bool, error) {
	c, err := Parse(candidate)
	if err != nil {
		return false, err
	}
	cur, err := Parse(current)
	if err != nil {
		return false, err
	}
	return IsGreater(c, cur), nil
}

func (v Version) at(i int) uint64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// String renders the version in dotted form.
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.FormatUint(n, 10)
	}
	return strings.Join(parts, ".")
}
