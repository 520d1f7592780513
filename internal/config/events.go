package config

import (
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/SAP-F-2025/assessment-session-service/internal/events"
)

// EventConfig holds configuration for event publishing
type EventConfig struct {
	Enabled      bool
	Publisher    string // kafka, memory or mock
	KafkaBrokers string
	SessionTopic string
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// CreateEventPublisher creates an event publisher based on configuration. The
// subscriber is only non-nil for the in-memory publisher.
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, message.Subscriber, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil, nil
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.SessionTopic)

		publisher, err := events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: c.GetKafkaBrokers(),
			TopicName:    c.SessionTopic,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return publisher, nil, nil
	case "memory":
		logger.Info("Using in-memory event publisher", "topic", c.SessionTopic)
		publisher, pubSub := events.NewInMemoryEventPublisher(c.SessionTopic, logger)
		return publisher, pubSub, nil
	case "mock":
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil, nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil, nil
	}
}
