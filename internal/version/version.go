// Package version implements the dotted numeric version used for script
// names and for the per-module version rows kept in the target database.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minComponents = 2
	maxComponents = 4
)

// Version is major.minor[.build[.revision]]. The zero value means "absent".
type Version struct {
	parts []int
}

// New builds a version from its components.
func New(components ...int) (Version, error) {
	if len(components) < minComponents || len(components) > maxComponents {
		return Version{}, fmt.Errorf("version must have %d to %d components, got %d", minComponents, maxComponents, len(components))
	}
	for _, c := range components {
		if c < 0 {
			return Version{}, fmt.Errorf("version component %d is negative", c)
		}
	}
	parts := make([]int, len(components))
	copy(parts, components)
	return Version{parts: parts}, nil
}

// MustParse is Parse for constants in tests and defaults. It panics on error.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Parse parses a dotted version string such as "1.0" or "2.3.0.15".
func Parse(s string) (Version, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return Version{}, fmt.Errorf("invalid version %q: empty", s)
	}

	fields := strings.Split(text, ".")
	if len(fields) < minComponents || len(fields) > maxComponents {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor[.build[.revision]]", s)
	}

	parts := make([]int, len(fields))
	for i, field := range fields {
		if field == "" || strings.TrimLeft(field, "0123456789") != "" {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not a number", s, field)
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		parts[i] = n
	}

	return Version{parts: parts}, nil
}

// IsZero reports whether v is the absent version.
func (v Version) IsZero() bool {
	return len(v.parts) == 0
}

// Compare returns -1, 0 or +1. A missing component sorts before a present
// one, so 1.0 < 1.0.0; the absent version sorts before everything.
func (v Version) Compare(other Version) int {
	for i := 0; i < maxComponents; i++ {
		a, b := v.component(i), other.component(i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

func (v Version) component(i int) int {
	if i < len(v.parts) {
		return v.parts[i]
	}
	return -1
}

// Equal reports exact equality, including the number of components.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Less reports v < other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// AtLeast reports v >= other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	fields := make([]string, len(v.parts))
	for i, p := range v.parts {
		fields[i] = strconv.Itoa(p)
	}
	return strings.Join(fields, ".")
}
