package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/toolsascode/sqldatabase/internal/executor"
	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/queue"
)

// Upgrader runs one upgrade synchronously; *executor.Runner implements it
type Upgrader interface {
	UpgradeSync(ctx context.Context, opts executor.RunOptions) (*executor.ExecuteResult, error)
}

// Worker processes upgrade jobs of one database from the queue
type Worker struct {
	upgrader Upgrader
	database string
	consumer queue.Consumer

	// Upgrades are strictly sequential even if a consumer calls concurrently
	mu sync.Mutex
}

// NewWorker creates a new upgrade worker for the named database
func NewWorker(upgrader Upgrader, database string, consumer queue.Consumer) *Worker {
	return &Worker{
		upgrader: upgrader,
		database: database,
		consumer: consumer,
	}
}

// Start consumes and processes jobs until ctx is done
func (w *Worker) Start(ctx context.Context) error {
	logger.Infof("starting upgrade worker for database [%s]", w.database)
	return w.consumer.Consume(ctx, w.ProcessJob)
}

// ProcessJob runs the upgrade described by job. A failed upgrade is reported
// in the result, not as an error, so the job is not redelivered.
func (w *Worker) ProcessJob(ctx context.Context, job *queue.Job) (*queue.JobResult, error) {
	if job.Database != "" && !strings.EqualFold(job.Database, w.database) {
		logger.Warnf("job %s targets database [%s], this worker serves [%s]", job.ID, job.Database, w.database)
		return &queue.JobResult{
			JobID:   job.ID,
			Applied: []string{},
			Errors:  []string{fmt.Sprintf("unexpected database [%s]", job.Database)},
		}, nil
	}

	// an empty mode keeps the worker's configured one
	var mode executor.TransactionMode
	if job.Transaction != "" {
		parsed, err := executor.ParseTransactionMode(job.Transaction)
		if err != nil {
			return &queue.JobResult{JobID: job.ID, Applied: []string{}, Errors: []string{err.Error()}}, nil
		}
		mode = parsed
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ctx = executor.WithOrigin(ctx, executor.Origin{
		ExecutedBy: executedBy(job),
		Method:     "queue",
		Details:    map[string]string{"job_id": job.ID},
	})
	result, err := w.upgrader.UpgradeSync(ctx, executor.RunOptions{
		WhatIf:      job.WhatIf,
		Transaction: mode,
		Variables:   job.Variables,
	})
	if result == nil {
		if err == nil {
			err = fmt.Errorf("upgrade returned no result")
		}
		return &queue.JobResult{JobID: job.ID, Applied: []string{}, Errors: []string{err.Error()}}, nil
	}

	return &queue.JobResult{
		JobID:   job.ID,
		Success: result.Success && err == nil,
		Applied: result.Applied,
		Errors:  result.Errors,
	}, nil
}

// Stop stops the worker
func (w *Worker) Stop() error {
	logger.Info("stopping upgrade worker")
	return w.consumer.Close()
}

func executedBy(job *queue.Job) string {
	if value, ok := job.Metadata["executed_by"].(string); ok && value != "" {
		return value
	}
	return "worker"
}
