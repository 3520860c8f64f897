// Package kafka carries upgrade jobs over a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/queue"
)

const jobIDHeader = "job-id"

// Queue implements queue.Queue. The reader is created on the first Consume,
// so a server that only publishes never joins the consumer group.
type Queue struct {
	brokers []string
	topic   string
	groupID string

	writer *kafka.Writer
	reader *kafka.Reader
}

// NewQueue creates a Kafka queue
func NewQueue(brokers []string, topic, groupID string) *Queue {
	return &Queue{
		brokers: brokers,
		topic:   topic,
		groupID: groupID,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// PublishJob writes the job keyed by database name, so the jobs of one
// database land on one partition in order
func (q *Queue) PublishJob(ctx context.Context, job *queue.Job) error {
	data, err := queue.Encode(job)
	if err != nil {
		return err
	}

	message := kafka.Message{
		Key:   []byte(job.Database),
		Value: data,
		Headers: []kafka.Header{
			{Key: jobIDHeader, Value: []byte(job.ID)},
		},
	}
	if err := q.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	logger.Infof("published upgrade job %s to Kafka topic %s", job.ID, q.topic)
	return nil
}

// Consume handles one job at a time and commits its offset once the handler
// returns, successful or not
func (q *Queue) Consume(ctx context.Context, handler queue.JobHandler) error {
	if q.reader == nil {
		q.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  q.brokers,
			Topic:    q.topic,
			GroupID:  q.groupID,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
		})
	}
	logger.Infof("starting Kafka consumer for topic %s (group %s)", q.topic, q.groupID)

	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info("Kafka consumer context cancelled")
				return ctx.Err()
			}
			return fmt.Errorf("failed to read message from Kafka: %w", err)
		}

		job, err := queue.Decode(msg.Value, headerValue(msg.Headers, jobIDHeader))
		if err != nil {
			logger.Errorf("skip Kafka message at offset %d: %v", msg.Offset, err)
		} else {
			handle(ctx, handler, job)
		}

		if err := q.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit Kafka offset: %w", err)
		}
	}
}

// Close closes the writer and the reader
func (q *Queue) Close() error {
	var errs []error
	if err := q.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if q.reader != nil {
		if err := q.reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func handle(ctx context.Context, handler queue.JobHandler, job *queue.Job) {
	logger.Infof("processing upgrade job %s of database [%s]", job.ID, job.Database)

	result, err := handler(ctx, job)
	switch {
	case err != nil:
		logger.Errorf("upgrade job %s failed: %v", job.ID, err)
	case result != nil:
		logger.Infof("upgrade job %s: %s", job.ID, queue.LogSummary(result))
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, header := range headers {
		if header.Key == key {
			return string(header.Value)
		}
	}
	return ""
}
