package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-engine/pkg/config"
)

// KafkaPublisher publishes events to a Kafka topic through Watermill.
type KafkaPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *zap.Logger
}

// NewKafkaPublisher connects a Watermill Kafka publisher.
func NewKafkaPublisher(cfg config.EventsConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: no brokers configured")
	}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, NewZapAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return newKafkaPublisher(publisher, cfg.Topic, logger), nil
}

func newKafkaPublisher(publisher message.Publisher, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{publisher: publisher, topic: topic, logger: logger}
}

// Publish sends the event as a JSON message with type metadata.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	msg := message.NewMessage(event.ID, body)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339))
	if event.RequestID != "" {
		msg.Metadata.Set("request_id", event.RequestID)
	}

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("publish grading event failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}

// Close shuts the underlying publisher down.
func (p *KafkaPublisher) Close() error {
	return p.publisher.Close()
}
