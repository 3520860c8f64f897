package queuefactory

import (
	"fmt"
	"strings"

	"github.com/toolsascode/sqldatabase/internal/queue"
	"github.com/toolsascode/sqldatabase/internal/queue/kafka"
	"github.com/toolsascode/sqldatabase/internal/queue/pulsar"
)

// DefaultGroup is the consumer group (Kafka) or subscription (Pulsar) of
// the workers when none is configured
const DefaultGroup = "sqldatabase-upgrade-workers"

// QueueConfig holds configuration for creating a queue
type QueueConfig struct {
	Type               string   // "kafka" or "pulsar"
	KafkaBrokers       []string // Kafka broker addresses
	KafkaTopic         string   // Kafka topic name
	KafkaGroupID       string   // Kafka consumer group ID
	PulsarURL          string   // Pulsar service URL
	PulsarTopic        string   // Pulsar topic name
	PulsarSubscription string   // Pulsar subscription name
}

// Validate checks the settings of the selected queue type
func (c QueueConfig) Validate() error {
	switch c.kind() {
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka brokers are required")
		}
		if c.KafkaTopic == "" {
			return fmt.Errorf("kafka topic is required")
		}
	case "pulsar":
		if c.PulsarURL == "" {
			return fmt.Errorf("pulsar URL is required")
		}
		if c.PulsarTopic == "" {
			return fmt.Errorf("pulsar topic is required")
		}
	default:
		return fmt.Errorf("unsupported queue type: %s (supported: kafka, pulsar)", c.Type)
	}
	return nil
}

func (c QueueConfig) kind() string {
	if c.Type == "" {
		return "kafka" // Default to Kafka
	}
	return strings.ToLower(c.Type)
}

// NewQueue creates a new queue based on the configuration
func NewQueue(config QueueConfig) (queue.Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.kind() == "pulsar" {
		subscription := config.PulsarSubscription
		if subscription == "" {
			subscription = DefaultGroup
		}
		return pulsar.NewQueue(config.PulsarURL, config.PulsarTopic, subscription)
	}

	groupID := config.KafkaGroupID
	if groupID == "" {
		groupID = DefaultGroup
	}
	return kafka.NewQueue(config.KafkaBrokers, config.KafkaTopic, groupID), nil
}
