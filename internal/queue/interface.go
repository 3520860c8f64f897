package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Job is an upgrade run waiting for a worker
type Job struct {
	ID          string                 `json:"id"`
	Database    string                 `json:"database"`
	WhatIf      bool                   `json:"what_if,omitempty"`
	Transaction string                 `json:"transaction,omitempty"`
	Variables   map[string]string      `json:"variables,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// JobResult represents the result of an upgrade job
type JobResult struct {
	JobID   string   `json:"job_id"`
	Success bool     `json:"success"`
	Applied []string `json:"applied"`
	Errors  []string `json:"errors"`
}

// Producer publishes upgrade jobs to the queue
type Producer interface {
	// PublishJob publishes an upgrade job to the queue
	PublishJob(ctx context.Context, job *Job) error

	// Close closes the producer connection
	Close() error
}

// Consumer consumes upgrade jobs from the queue
type Consumer interface {
	// Consume starts consuming jobs from the queue
	// The handler function is called for each job
	Consume(ctx context.Context, handler JobHandler) error

	// Close closes the consumer connection
	Close() error
}

// JobHandler processes an upgrade job
type JobHandler func(ctx context.Context, job *Job) (*JobResult, error)

// Queue provides both producer and consumer capabilities
type Queue interface {
	Producer
	Consumer
}

// Encode serializes a job for the wire
func Encode(job *Job) ([]byte, error) {
	if job.ID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

// Decode deserializes a job. fallbackID is used when the payload carries no id.
func Decode(data []byte, fallbackID string) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.ID == "" {
		job.ID = fallbackID
	}
	if job.ID == "" {
		return nil, fmt.Errorf("job has no id")
	}
	return &job, nil
}

// LogSummary renders the outcome of a job for the consumer logs
func LogSummary(result *JobResult) string {
	if result.Success {
		return fmt.Sprintf("%d script(s) applied", len(result.Applied))
	}
	return fmt.Sprintf("failed after %d script(s): %v", len(result.Applied), result.Errors)
}
