package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventPublisher defines the interface for publishing session events
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *SessionEvent) error
	Close() error
}

// WatermillEventPublisher publishes events through any Watermill publisher
type WatermillEventPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
	topicName string
}

// PublisherConfig holds configuration for the event publisher
type PublisherConfig struct {
	KafkaBrokers []string
	TopicName    string
	Logger       *slog.Logger
}

// NewKafkaEventPublisher creates a new Kafka-based event publisher using Watermill
func NewKafkaEventPublisher(config PublisherConfig) (*WatermillEventPublisher, error) {
	logger := watermill.NewSlogLogger(config.Logger)

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   config.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}

	return &WatermillEventPublisher{
		publisher: publisher,
		logger:    config.Logger,
		topicName: config.TopicName,
	}, nil
}

// NewInMemoryEventPublisher publishes onto a Watermill Go channel pub/sub. The
// returned GoChannel can be used to subscribe to the same topic.
func NewInMemoryEventPublisher(topicName string, logger *slog.Logger) (*WatermillEventPublisher, *gochannel.GoChannel) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, watermill.NewSlogLogger(logger))

	return &WatermillEventPublisher{
		publisher: pubSub,
		logger:    logger,
		topicName: topicName,
	}, pubSub
}

// PublishSessionEvent marshals the event and publishes it to the configured topic
func (p *WatermillEventPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	msg := message.NewMessage(event.ID, eventBytes)
	msg.SetContext(ctx)

	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("session_id", event.SessionID)
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topicName, msg); err != nil {
		p.logger.Error("Failed to publish session event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
		return fmt.Errorf("failed to publish session event: %w", err)
	}

	p.logger.Debug("Published session event",
		"event_id", event.ID,
		"event_type", event.Type,
		"session_id", event.SessionID,
		"topic", p.topicName)

	return nil
}

// Close closes the publisher and releases resources
func (p *WatermillEventPublisher) Close() error {
	return p.publisher.Close()
}

// LogSessionEvents consumes topic until ctx is done, logging each event.
func LogSessionEvents(ctx context.Context, subscriber message.Subscriber, topic string, logger *slog.Logger) error {
	messages, err := subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			var event SessionEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logger.Warn("Dropping malformed session event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			logger.Info("Session event",
				"event_type", event.Type,
				"session_id", event.SessionID,
				"event_id", event.ID)
			msg.Ack()
		}
	}()
	return nil
}

// MockEventPublisher keeps events in memory (for testing)
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []SessionEvent
	Logger *slog.Logger
	Err    error
}

// NewMockEventPublisher creates a new mock event publisher
func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{
		Events: make([]SessionEvent, 0),
		Logger: logger,
	}
}

func (m *MockEventPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, *event)
	m.Logger.Debug("Mock: Published session event",
		"event_id", event.ID,
		"event_type", event.Type)
	return nil
}

// Close is a no-op for the mock publisher
func (m *MockEventPublisher) Close() error {
	return nil
}

// GetPublishedEvents returns a copy of all published events
func (m *MockEventPublisher) GetPublishedEvents() []SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SessionEvent(nil), m.Events...)
}

// EventTypes lists published event types in order
func (m *MockEventPublisher) EventTypes() []EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]EventType, len(m.Events))
	for i, e := range m.Events {
		types[i] = e.Type
	}
	return types
}

// ClearEvents clears all published events
func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = make([]SessionEvent, 0)
}
