package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/errs"
	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/registry"
	"github.com/toolsascode/sqldatabase/internal/state"
	"github.com/toolsascode/sqldatabase/internal/variables"
	"github.com/toolsascode/sqldatabase/internal/version"
)

// TransactionMode controls the transaction scope of a step
type TransactionMode string

const (
	// TransactionNone runs every statement in autocommit mode
	TransactionNone TransactionMode = "none"
	// TransactionPerStep runs a step script and its version write in one
	// READ COMMITTED transaction
	TransactionPerStep TransactionMode = "perStep"
)

// ParseTransactionMode parses "none" or "perStep", ignoring case. An empty
// string means none.
func ParseTransactionMode(s string) (TransactionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TransactionNone, nil
	case "perstep":
		return TransactionPerStep, nil
	default:
		return "", errs.Config("unknown transaction mode %q (supported: none, perStep)", s)
	}
}

// Options controls how an executor runs steps
type Options struct {
	WhatIf      bool
	Transaction TransactionMode
	Variables   *variables.Variables
}

// Executor runs steps against one target database. It opens connections on
// first use and must be closed.
type Executor struct {
	adapter backends.Adapter
	options Options

	mu      sync.Mutex
	db      *sql.DB
	master  *sql.DB
	tracker *state.Tracker
}

// NewExecutor creates an executor for the adapter's database
func NewExecutor(adapter backends.Adapter, options Options) *Executor {
	if options.Variables == nil {
		options.Variables = variables.New()
	}
	if options.Transaction == "" {
		options.Transaction = TransactionNone
	}
	return &Executor{
		adapter: adapter,
		options: options,
	}
}

// GetCurrentVersion reads the persisted version of a module; the executor is
// the registry.VersionResolver of a run
func (e *Executor) GetCurrentVersion(ctx context.Context, moduleName string) (version.Version, error) {
	tracker, err := e.stateTracker()
	if err != nil {
		return version.Version{}, err
	}
	return tracker.GetCurrentVersion(ctx, moduleName)
}

// ServerVersion returns the server description of the target
func (e *Executor) ServerVersion(ctx context.Context) (string, error) {
	tracker, err := e.stateTracker()
	if err != nil {
		return "", err
	}
	db, err := e.database(false)
	if err != nil {
		return "", err
	}
	return tracker.ServerVersion(ctx, db)
}

// Execute runs an upgrade step and moves its module to step.To. In what-if
// mode the script is only logged.
func (e *Executor) Execute(ctx context.Context, step *registry.Step) error {
	vars := e.stepVariables(step)
	vars.Set(variables.FromRuntime, variables.CurrentVersion, step.From.String())
	vars.Set(variables.FromRuntime, variables.TargetVersion, step.To.String())

	text, err := e.prepare(step, vars)
	if err != nil || e.options.WhatIf {
		return err
	}

	tracker, err := e.stateTracker()
	if err != nil {
		return err
	}
	db, err := e.database(false)
	if err != nil {
		return err
	}

	return e.run(ctx, db, step, text, func(q state.Querier) error {
		return tracker.WriteVersion(ctx, q, step.ModuleName, step.From, step.To)
	})
}

// ExecuteScript runs a step without version bookkeeping. When the target
// database does not exist yet the master connection is used.
func (e *Executor) ExecuteScript(ctx context.Context, step *registry.Step) error {
	vars := e.stepVariables(step)
	if !step.To.IsZero() {
		vars.Set(variables.FromRuntime, variables.TargetVersion, step.To.String())
	}

	text, err := e.prepare(step, vars)
	if err != nil || e.options.WhatIf {
		return err
	}

	exists, err := e.databaseExists(ctx)
	if err != nil {
		return err
	}
	db, err := e.database(!exists)
	if err != nil {
		return err
	}
	if !exists {
		logger.Infof("database [%s] not found, use the master connection", e.adapter.DatabaseName())
	}

	return e.run(ctx, db, step, text, nil)
}

// Close closes the connections opened by the executor
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for _, db := range []*sql.DB{e.db, e.master} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.db, e.master, e.tracker = nil, nil, nil
	return firstErr
}

// prepare reads the script and applies the variables. In what-if mode an
// undefined variable is reported as a warning.
func (e *Executor) prepare(step *registry.Step, vars *variables.Variables) (string, error) {
	raw, err := step.Script.ReadText()
	if err != nil {
		// dry runs report no execution errors
		if e.options.WhatIf {
			return "", errs.Config("failed to read %s: %v", step.DisplayName(), err)
		}
		return "", errs.Execution(err, "failed to read %s", step.DisplayName())
	}

	if e.options.WhatIf {
		logger.Infof("what-if mode: %s", step.DisplayName())
		for _, name := range variables.Referenced(raw) {
			if value, ok := vars.Get(name); ok {
				logger.Infof("## %s = %s", name, value)
			} else {
				logger.Warnf("## %s is not defined", name)
			}
		}
		return "", nil
	}

	text, err := vars.Apply(raw)
	if err != nil {
		return "", errs.Execution(err, "failed to prepare %s", step.DisplayName())
	}
	return text, nil
}

// run sends the batches of text over a single connection, then calls after
// (the version write) in the same scope
func (e *Executor) run(ctx context.Context, db *sql.DB, step *registry.Step, text string, after func(q state.Querier) error) error {
	start := time.Now()
	logger.Infof("execute %s", step.DisplayName())

	conn, err := db.Conn(ctx)
	if err != nil {
		return errs.Execution(err, "failed to connect to database [%s]", e.adapter.DatabaseName())
	}
	defer func() { _ = conn.Close() }()

	var q state.Querier = conn
	var tx *sql.Tx
	if e.options.Transaction == TransactionPerStep {
		tx, err = conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return errs.Execution(err, "failed to begin transaction")
		}
		defer func() { _ = tx.Rollback() }()
		q = tx
	}

	for i, batch := range e.adapter.Split(text) {
		if _, err := q.ExecContext(ctx, batch); err != nil {
			return errs.Execution(err, "%s failed at batch %d", step.DisplayName(), i+1)
		}
	}

	if after != nil {
		if err := after(q); err != nil {
			return err
		}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return errs.Execution(err, "failed to commit %s", step.DisplayName())
		}
	}

	logger.Infof("done in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func (e *Executor) stepVariables(step *registry.Step) *variables.Variables {
	vars := e.options.Variables.Clone()
	vars.Set(variables.FromRuntime, variables.DatabaseName, e.adapter.DatabaseName())
	vars.Set(variables.FromRuntime, variables.ModuleName, step.ModuleName)
	return vars
}

func (e *Executor) databaseExists(ctx context.Context) (bool, error) {
	master, err := e.database(true)
	if err != nil {
		return false, err
	}

	var found sql.NullString
	err = master.QueryRowContext(ctx, e.adapter.DatabaseExistsScript(e.adapter.DatabaseName())).Scan(&found)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, errs.Execution(err, "failed to check whether database [%s] exists", e.adapter.DatabaseName())
	}
	return true, nil
}

func (e *Executor) database(useMaster bool) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	target := &e.db
	if useMaster {
		target = &e.master
	}
	if *target != nil {
		return *target, nil
	}

	db, err := e.adapter.Open(useMaster)
	if err != nil {
		return nil, errs.Execution(err, "failed to open a %s connection", e.adapter.Name())
	}
	*target = db
	return db, nil
}

func (e *Executor) stateTracker() (*state.Tracker, error) {
	db, err := e.database(false)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tracker == nil {
		e.tracker = state.NewTracker(db, e.adapter, e.options.Variables)
	}
	return e.tracker, nil
}

// String describes the executor target for logs
func (e *Executor) String() string {
	return fmt.Sprintf("%s database [%s]", e.adapter.Name(), e.adapter.DatabaseName())
}
