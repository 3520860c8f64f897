// Package state reads and writes the per-module version rows kept in the
// target database.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/errs"
	"github.com/toolsascode/sqldatabase/internal/variables"
	"github.com/toolsascode/sqldatabase/internal/version"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tracker runs the adapter's version scripts with the run variables applied
type Tracker struct {
	db        *sql.DB
	adapter   backends.Adapter
	variables *variables.Variables
}

// NewTracker creates a tracker reading versions through db
func NewTracker(db *sql.DB, adapter backends.Adapter, vars *variables.Variables) *Tracker {
	if vars == nil {
		vars = variables.New()
	}
	return &Tracker{
		db:        db,
		adapter:   adapter,
		variables: vars,
	}
}

// GetCurrentVersion reads the version of a module with a fresh query
func (t *Tracker) GetCurrentVersion(ctx context.Context, moduleName string) (version.Version, error) {
	return t.ReadVersion(ctx, t.db, moduleName)
}

// ReadVersion reads the version of a module through q
func (t *Tracker) ReadVersion(ctx context.Context, q Querier, moduleName string) (version.Version, error) {
	vars := t.scriptVariables(moduleName)
	script, err := vars.Apply(t.adapter.VersionSelectScript())
	if err != nil {
		return version.Version{}, errs.Config("invalid version select script: %v", err)
	}

	var value sql.NullString
	if err := q.QueryRowContext(ctx, script).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return version.Version{}, errs.Execution(err, "%s not found, script: %s", describe(moduleName), script)
		}
		return version.Version{}, errs.Execution(err, "failed to read the version, script: %s", script)
	}

	v, err := version.Parse(value.String)
	if err != nil || !value.Valid {
		return version.Version{}, errs.Config("the version [%s] of %s is invalid", value.String, describeOwner(moduleName))
	}
	return v, nil
}

// WriteVersion sets the version of a module to target through q and reads it
// back. A different value means the update script is wrong.
func (t *Tracker) WriteVersion(ctx context.Context, q Querier, moduleName string, current, target version.Version) error {
	vars := t.scriptVariables(moduleName)
	vars.Set(variables.FromRuntime, variables.CurrentVersion, current.String())
	vars.Set(variables.FromRuntime, variables.TargetVersion, target.String())

	script, err := vars.Apply(t.adapter.VersionUpdateScript())
	if err != nil {
		return errs.Config("invalid version update script: %v", err)
	}

	if _, err := q.ExecContext(ctx, script); err != nil {
		return errs.Execution(err, "failed to update the version, script: %s", script)
	}

	actual, err := t.ReadVersion(ctx, q, moduleName)
	if err != nil {
		return err
	}
	if !actual.Equal(target) {
		return errs.Execution(nil, "set version script works incorrectly: expected version is %s, but actual is %s, script: %s",
			target, actual, script)
	}
	return nil
}

// ServerVersion returns the server description reported by the adapter
func (t *Tracker) ServerVersion(ctx context.Context, q Querier) (string, error) {
	var value sql.NullString
	if err := q.QueryRowContext(ctx, t.adapter.ServerVersionScript()).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to read the server version: %w", err)
	}
	return value.String, nil
}

func (t *Tracker) scriptVariables(moduleName string) *variables.Variables {
	vars := t.variables.Clone()
	vars.Set(variables.FromRuntime, variables.ModuleName, moduleName)
	vars.Set(variables.FromRuntime, variables.DatabaseName, t.adapter.DatabaseName())
	return vars
}

func describe(moduleName string) string {
	if moduleName == "" {
		return "the database version"
	}
	return fmt.Sprintf("the version of module [%s]", moduleName)
}

func describeOwner(moduleName string) string {
	if moduleName == "" {
		return "database"
	}
	return fmt.Sprintf("module [%s]", moduleName)
}
