// Package pulsar carries upgrade jobs over a Pulsar topic.
package pulsar

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/pulsar-client-go/pulsar"

	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/queue"
)

const jobIDProperty = "job-id"

// Queue implements queue.Queue with one client shared by the producer and
// the consumer
type Queue struct {
	client       pulsar.Client
	producer     pulsar.Producer
	consumer     pulsar.Consumer
	topic        string
	subscription string
}

// NewQueue connects to Pulsar and creates the producer. The subscription is
// created on the first Consume.
func NewQueue(url, topic, subscription string) (*Queue, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pulsar client: %w", err)
	}

	producer, err := client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create Pulsar producer: %w", err)
	}

	return &Queue{
		client:       client,
		producer:     producer,
		topic:        topic,
		subscription: subscription,
	}, nil
}

// PublishJob sends the job keyed by database name
func (q *Queue) PublishJob(ctx context.Context, job *queue.Job) error {
	msg, err := producerMessage(job)
	if err != nil {
		return err
	}
	if _, err := q.producer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message to Pulsar: %w", err)
	}

	logger.Infof("published upgrade job %s to Pulsar topic %s", job.ID, q.topic)
	return nil
}

// Consume handles one job at a time. Undecodable messages are acknowledged
// and dropped; a job whose handler returns an error is negatively
// acknowledged for redelivery.
func (q *Queue) Consume(ctx context.Context, handler queue.JobHandler) error {
	if q.consumer == nil {
		consumer, err := q.client.Subscribe(pulsar.ConsumerOptions{
			Topic:            q.topic,
			SubscriptionName: q.subscription,
			Type:             pulsar.KeyShared,
		})
		if err != nil {
			return fmt.Errorf("failed to create Pulsar consumer: %w", err)
		}
		q.consumer = consumer
	}
	logger.Infof("starting Pulsar consumer for topic %s (subscription %s)", q.topic, q.subscription)

	for {
		msg, err := q.consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info("Pulsar consumer context cancelled")
				return ctx.Err()
			}
			return fmt.Errorf("failed to receive message from Pulsar: %w", err)
		}

		job, err := decodeMessage(msg)
		if err != nil {
			logger.Errorf("skip Pulsar message %v: %v", msg.ID(), err)
			_ = q.consumer.Ack(msg)
			continue
		}

		logger.Infof("processing upgrade job %s of database [%s]", job.ID, job.Database)
		result, err := handler(ctx, job)
		if err != nil {
			logger.Errorf("upgrade job %s failed: %v", job.ID, err)
			q.consumer.Nack(msg)
			continue
		}
		if err := q.consumer.Ack(msg); err != nil {
			logger.Errorf("failed to acknowledge job %s: %v", job.ID, err)
		}
		if result != nil {
			logger.Infof("upgrade job %s: %s", job.ID, queue.LogSummary(result))
		}
	}
}

// Close closes the consumer, the producer and the client
func (q *Queue) Close() error {
	if q.consumer != nil {
		q.consumer.Close()
	}
	q.producer.Close()
	q.client.Close()
	return nil
}

// producerMessage encodes job keyed by database name, so a KeyShared
// subscription hands the jobs of one database to one consumer in order
func producerMessage(job *queue.Job) (*pulsar.ProducerMessage, error) {
	data, err := queue.Encode(job)
	if err != nil {
		return nil, err
	}
	return &pulsar.ProducerMessage{
		Payload:    data,
		Key:        job.Database,
		Properties: map[string]string{jobIDProperty: job.ID},
	}, nil
}

// payloadMessage is the part of pulsar.Message a job is decoded from
type payloadMessage interface {
	Payload() []byte
	Properties() map[string]string
}

func decodeMessage(msg payloadMessage) (*queue.Job, error) {
	return queue.Decode(msg.Payload(), msg.Properties()[jobIDProperty])
}
