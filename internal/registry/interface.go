package registry

import (
	"context"

	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/internal/version"
)

// VersionResolver supplies the version a module is currently at in the target
// database. The module name of the unnamed module is "".
type VersionResolver interface {
	GetCurrentVersion(ctx context.Context, moduleName string) (version.Version, error)
}

// VersionResolverFunc adapts a function to VersionResolver
type VersionResolverFunc func(ctx context.Context, moduleName string) (version.Version, error)

// GetCurrentVersion calls f
func (f VersionResolverFunc) GetCurrentVersion(ctx context.Context, moduleName string) (version.Version, error) {
	return f(ctx, moduleName)
}

// Step is one script bound to a version transition of a module. Creation and
// plain execution steps have a zero From; plain execution steps also have a
// zero To.
type Step struct {
	ModuleName   string
	From         version.Version
	To           version.Version
	Script       *scripts.Script
	Dependencies []scripts.Dependency
}

// DisplayName is the script display name
func (s *Step) DisplayName() string {
	return s.Script.DisplayName
}

// Versioned reports whether executing the step moves the module to To
func (s *Step) Versioned() bool {
	return !s.From.IsZero()
}

func (s *Step) String() string {
	return s.Script.DisplayName
}
