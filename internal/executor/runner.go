package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/lock"
	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/queue"
	"github.com/toolsascode/sqldatabase/internal/registry"
	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/internal/variables"
)

// Command names a kind of run
type Command string

const (
	CommandUpgrade Command = "upgrade"
	CommandCreate  Command = "create"
	CommandExecute Command = "execute"
)

// RunOptions are the per run settings. Variables are command line values and
// override the configured ones.
type RunOptions struct {
	WhatIf      bool
	Transaction TransactionMode
	Variables   map[string]string
}

// ExecuteResult represents the result of a run
type ExecuteResult struct {
	RunID   string
	Success bool
	WhatIf  bool
	Applied []string
	Errors  []string
	Queued  bool   // Whether the job was queued instead of executed
	JobID   string // Job ID if queued
}

// Runner performs upgrade, create and execute runs against one database
type Runner struct {
	adapter   backends.Adapter
	scanner   *scripts.Scanner
	sources   []string
	variables *variables.Variables

	mu          sync.Mutex
	transaction TransactionMode
	locker      lock.Locker
	queue       queue.Producer // Optional queue for async upgrades
}

// NewRunner creates a runner for the scripts found in sources
func NewRunner(adapter backends.Adapter, scanner *scripts.Scanner, sources []string) *Runner {
	if scanner == nil {
		scanner = scripts.NewScanner()
	}
	return &Runner{
		adapter:     adapter,
		scanner:     scanner,
		sources:     sources,
		variables:   variables.New(),
		transaction: TransactionNone,
		locker:      lock.Noop{},
	}
}

// SetVariables sets the configured variables
func (r *Runner) SetVariables(values map[string]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := variables.ValidateNames(names); err != nil {
		return err
	}

	vars := variables.New()
	vars.SetAll(variables.FromConfiguration, values)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables = vars
	return nil
}

// SetTransaction sets the default transaction mode
func (r *Runner) SetTransaction(mode TransactionMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transaction = mode
}

// SetLocker sets the run lock
func (r *Runner) SetLocker(locker lock.Locker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locker = locker
}

// SetQueue sets the queue for async upgrades
func (r *Runner) SetQueue(q queue.Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = q
}

// Adapter returns the target adapter
func (r *Runner) Adapter() backends.Adapter {
	return r.adapter
}

// Sequence resolves the pending upgrade steps without running them
func (r *Runner) Sequence(ctx context.Context) ([]*registry.Step, error) {
	exec, err := r.newExecutor(RunOptions{WhatIf: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = exec.Close() }()

	found, err := r.scanner.Scan(r.sources)
	if err != nil {
		return nil, err
	}
	return registry.BuildSequence(ctx, found, exec)
}

// HealthCheck reports the server version of the target
func (r *Runner) HealthCheck(ctx context.Context) (string, error) {
	exec, err := r.newExecutor(RunOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = exec.Close() }()
	return exec.ServerVersion(ctx)
}

// Upgrade upgrades the database. If a queue is configured and this is not a
// what-if run, the job is queued instead.
func (r *Runner) Upgrade(ctx context.Context, opts RunOptions) (*ExecuteResult, error) {
	r.mu.Lock()
	q := r.queue
	r.mu.Unlock()

	if q != nil && !opts.WhatIf {
		return r.queueJob(ctx, q, opts)
	}
	return r.UpgradeSync(ctx, opts)
}

// UpgradeSync upgrades the database synchronously (bypasses queue, used by worker)
func (r *Runner) UpgradeSync(ctx context.Context, opts RunOptions) (*ExecuteResult, error) {
	return r.run(ctx, CommandUpgrade, opts)
}

// Create runs the creation scripts
func (r *Runner) Create(ctx context.Context, opts RunOptions) (*ExecuteResult, error) {
	return r.run(ctx, CommandCreate, opts)
}

// Execute runs every script found, without version bookkeeping
func (r *Runner) Execute(ctx context.Context, opts RunOptions) (*ExecuteResult, error) {
	return r.run(ctx, CommandExecute, opts)
}

// queueJob publishes an upgrade job for async execution
func (r *Runner) queueJob(ctx context.Context, q queue.Producer, opts RunOptions) (*ExecuteResult, error) {
	job := &queue.Job{
		ID:          fmt.Sprintf("job_%s", uuid.NewString()),
		Database:    r.adapter.DatabaseName(),
		WhatIf:      opts.WhatIf,
		Transaction: string(opts.Transaction),
		Variables:   opts.Variables,
		Metadata:    OriginFrom(ctx).Fields(),
	}

	if err := q.PublishJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to queue upgrade job: %w", err)
	}
	logger.Infof("upgrade of database [%s] queued as %s", job.Database, job.ID)

	return &ExecuteResult{
		Success: true,
		Applied: []string{},
		Errors:  []string{},
		Queued:  true,
		JobID:   job.ID,
	}, nil
}

func (r *Runner) run(ctx context.Context, command Command, opts RunOptions) (*ExecuteResult, error) {
	result := &ExecuteResult{
		RunID:   uuid.NewString(),
		WhatIf:  opts.WhatIf,
		Applied: []string{},
		Errors:  []string{},
	}
	fail := func(err error) (*ExecuteResult, error) {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	exec, err := r.newExecutor(opts)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = exec.Close() }()

	fields := OriginFrom(ctx).Fields()
	fields["run_id"] = result.RunID
	fields["command"] = string(command)
	logger.WithFields(fields).Infof("%s %s", command, exec)
	if opts.WhatIf {
		logger.Info("what-if mode")
	}

	// execute accepts any file name; the other commands need versioned names
	var found []*scripts.Script
	if command == CommandExecute {
		found, err = r.scanner.Files(r.sources)
	} else {
		found, err = r.scanner.Scan(r.sources)
	}
	if err != nil {
		return fail(err)
	}

	if !opts.WhatIf {
		release, err := r.acquire(ctx)
		if err != nil {
			return fail(err)
		}
		defer release()
	}

	var sequence []*registry.Step
	switch command {
	case CommandUpgrade:
		sequence, err = registry.BuildSequence(ctx, found, exec)
	case CommandCreate:
		sequence, err = registry.BuildCreateSequence(found)
	default:
		sequence, err = registry.BuildExecuteSequence(found)
	}
	if err != nil {
		return fail(err)
	}

	if len(sequence) == 0 {
		logger.Info("the database is up-to-date")
		result.Success = true
		return result, nil
	}
	logger.Infof("sequence:\n%s", registry.FormatSequence(sequence))

	start := time.Now()
	for _, step := range sequence {
		if command == CommandUpgrade {
			err = exec.Execute(ctx, step)
		} else {
			err = exec.ExecuteScript(ctx, step)
		}
		if err != nil {
			return fail(err)
		}
		result.Applied = append(result.Applied, step.DisplayName())
	}
	logger.Infof("%s done in %s", command, time.Since(start).Round(time.Millisecond))

	result.Success = true
	return result, nil
}

func (r *Runner) newExecutor(opts RunOptions) (*Executor, error) {
	names := make([]string, 0, len(opts.Variables))
	for name := range opts.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := variables.ValidateNames(names); err != nil {
		return nil, err
	}

	r.mu.Lock()
	vars := r.variables.Clone()
	mode := r.transaction
	r.mu.Unlock()

	vars.SetAll(variables.FromCommandLine, opts.Variables)
	if opts.Transaction != "" {
		mode = opts.Transaction
	}

	return NewExecutor(r.adapter, Options{
		WhatIf:      opts.WhatIf,
		Transaction: mode,
		Variables:   vars,
	}), nil
}

func (r *Runner) acquire(ctx context.Context) (func(), error) {
	r.mu.Lock()
	locker := r.locker
	r.mu.Unlock()

	release, err := locker.Acquire(ctx, lock.Key(r.adapter.Name(), r.adapter.DatabaseName()))
	if err != nil {
		return nil, fmt.Errorf("failed to lock database [%s]: %w", r.adapter.DatabaseName(), err)
	}
	return release, nil
}
