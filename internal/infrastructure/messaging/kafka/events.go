package kafka

import (
	"context"
	"encoding/json"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// DefaultChangeTopic carries significant profile change events.
const DefaultChangeTopic = config.DefaultKafkaChangeTopic

const (
	schemaVersion = "v1"
	sourceService = "exportready"
)

// EventEnvelope is the wire format of every published event.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// NewChangeEnvelope wraps a significant change event.
func NewChangeEnvelope(e *business.SignificantChangeEvent) (*EventEnvelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       e.EventID(),
		EventType:     e.EventType(),
		Source:        sourceService,
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// ToMessage encodes the envelope for topic, keyed by key.
func (env *EventEnvelope) ToMessage(topic, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     env.EventType,
			"source_service": env.Source,
			"schema_version": env.SchemaVersion,
		},
	}, nil
}

// DecodeChangeEvent parses a message value produced by ChangeEventPublisher.
func DecodeChangeEvent(value []byte) (*business.SignificantChangeEvent, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	if env.EventType != business.EventTypeSignificantChange {
		return nil, errors.Newf(errors.ErrCodeValidation, "unexpected event type %q", env.EventType)
	}
	e := &business.SignificantChangeEvent{}
	if err := json.Unmarshal(env.Payload, e); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal change event")
	}
	return e, nil
}

// publisher is the part of Producer the change publisher needs.
type publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// ChangeEventPublisher forwards significant change events to Kafka. It is a
// business.ChangeSubscriber; publish failures are returned to the notifier,
// which logs them without affecting the profile update.
type ChangeEventPublisher struct {
	producer publisher
	topic    string
	logger   logging.Logger
}

// NewChangeEventPublisher returns a publisher writing to topic, or to
// DefaultChangeTopic when topic is empty.
func NewChangeEventPublisher(p publisher, topic string, log logging.Logger) *ChangeEventPublisher {
	if topic == "" {
		topic = DefaultChangeTopic
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ChangeEventPublisher{producer: p, topic: topic, logger: log.Named("change_publisher")}
}

// OnSignificantChange publishes event keyed by business ID, so every change
// for one business lands on the same partition in order.
func (c *ChangeEventPublisher) OnSignificantChange(ctx context.Context, event *business.SignificantChangeEvent) error {
	env, err := NewChangeEnvelope(event)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(c.topic, event.BusinessID)
	if err != nil {
		return err
	}
	msg.Timestamp = event.OccurredAt()
	if err := c.producer.Publish(ctx, msg); err != nil {
		return err
	}
	c.logger.Debug("published significant change",
		logging.String("business_id", event.BusinessID),
		logging.Int("changes", len(event.Changes)))
	return nil
}
