// Package variables substitutes {{Name}} and $(Name) placeholders in scripts.
package variables

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/toolsascode/sqldatabase/internal/errs"
)

// Source tells where a value came from. A value is only replaced by one from
// the same or a higher source.
type Source int

const (
	FromConfiguration Source = iota
	FromCommandLine
	FromRuntime
)

// Runtime variable names set by the executor for every script
const (
	DatabaseName   = "DatabaseName"
	ModuleName     = "ModuleName"
	CurrentVersion = "CurrentVersion"
	TargetVersion  = "TargetVersion"
)

var (
	namePattern        = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}|\$\(([A-Za-z_][A-Za-z0-9_]*)\)`)
)

type entry struct {
	name   string
	value  string
	source Source
}

// Variables holds named values; names are case-insensitive
type Variables struct {
	values map[string]entry
}

// New creates an empty set of variables
func New() *Variables {
	return &Variables{values: make(map[string]entry)}
}

// Set stores a value unless a higher source already set the name
func (v *Variables) Set(source Source, name, value string) {
	key := strings.ToLower(name)
	if existing, ok := v.values[key]; ok && existing.source > source {
		return
	}
	v.values[key] = entry{name: name, value: value, source: source}
}

// SetAll stores every value of values from source
func (v *Variables) SetAll(source Source, values map[string]string) {
	for name, value := range values {
		v.Set(source, name, value)
	}
}

// Get returns the value of name
func (v *Variables) Get(name string) (string, bool) {
	e, ok := v.values[strings.ToLower(name)]
	return e.value, ok
}

// Names returns the defined names, sorted
func (v *Variables) Names() []string {
	names := make([]string, 0, len(v.values))
	for _, e := range v.values {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy
func (v *Variables) Clone() *Variables {
	clone := New()
	for key, e := range v.values {
		clone.values[key] = e
	}
	return clone
}

// Apply replaces every placeholder in text. An undefined name is an error.
func (v *Variables) Apply(text string) (string, error) {
	var missing []string

	result := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderName(match)
		value, ok := v.Get(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("variable %s is not defined", strings.Join(unique(missing), ", "))
	}
	return result, nil
}

// Referenced returns the distinct placeholder names used in text, in order
// of first use
func Referenced(text string) []string {
	var names []string
	for _, match := range placeholderPattern.FindAllString(text, -1) {
		names = append(names, placeholderName(match))
	}
	return unique(names)
}

func placeholderName(match string) string {
	sub := placeholderPattern.FindStringSubmatch(match)
	if sub[1] != "" {
		return sub[1]
	}
	return sub[2]
}

func unique(names []string) []string {
	seen := make(map[string]bool)
	result := names[:0:0]
	for _, name := range names {
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, name)
	}
	return result
}

// ValidateNames returns a configuration error listing every invalid name
func ValidateNames(names []string) error {
	var invalid []string
	for _, name := range names {
		if !namePattern.MatchString(name) {
			invalid = append(invalid, fmt.Sprintf("%q", name))
		}
	}
	if len(invalid) > 0 {
		return errs.Config("invalid variable name(s): %s", strings.Join(invalid, ", "))
	}
	return nil
}

// ParseAssignment splits a command line "name=value" pair
func ParseAssignment(text string) (string, string, error) {
	name, value, ok := strings.Cut(text, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", errs.Config("invalid variable %q: expected name=value", text)
	}
	if err := ValidateNames([]string{name}); err != nil {
		return "", "", err
	}
	return name, value, nil
}
