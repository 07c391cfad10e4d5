package kafka

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumeObserver is told the result of every consumed event.
type ConsumeObserver interface {
	IncChangeEventConsumed(ok bool)
}

// ChangeEventConsumer reads significant change events from the change topic
// and hands each to a subscriber. Messages that cannot be decoded or whose
// handling fails are logged and committed so one bad record cannot stall the
// partition.
type ChangeEventConsumer struct {
	reader     ReaderInterface
	subscriber business.ChangeSubscriber
	logger     logging.Logger
	observer   ConsumeObserver
	running    atomic.Bool
	backoff    time.Duration

	processed atomic.Int64
	failed    atomic.Int64
}

// NewChangeEventConsumer joins groupID on the configured change topic.
func NewChangeEventConsumer(cfg config.KafkaConfig, groupID string, sub business.ChangeSubscriber, log logging.Logger) (*ChangeEventConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeConfiguration, "kafka brokers required")
	}
	if groupID == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "consumer group id required")
	}
	topic := cfg.ChangeTopic
	if topic == "" {
		topic = DefaultChangeTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    maxMessageBytes,
	})
	return NewChangeEventConsumerWithReader(reader, sub, log), nil
}

// NewChangeEventConsumerWithReader wraps an existing reader, typically a mock.
func NewChangeEventConsumerWithReader(r ReaderInterface, sub business.ChangeSubscriber, log logging.Logger) *ChangeEventConsumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ChangeEventConsumer{reader: r, subscriber: sub, logger: log.Named("change_consumer"), backoff: time.Second}
}

// WithObserver reports each consumed event to o.
func (c *ChangeEventConsumer) WithObserver(o ConsumeObserver) *ChangeEventConsumer {
	c.observer = o
	return c
}

// Run consumes until ctx is cancelled, then returns nil.
func (c *ChangeEventConsumer) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("FetchMessage failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		herr := c.handle(ctx, m)
		if c.observer != nil {
			c.observer.IncChangeEventConsumed(herr == nil)
		}
		if herr != nil {
			c.failed.Add(1)
			c.logger.Warn("change event dropped",
				logging.String("topic", m.Topic),
				logging.Int64("offset", m.Offset),
				logging.Err(herr))
		} else {
			c.processed.Add(1)
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("CommitMessages failed", logging.Err(err))
		}
	}
}

func (c *ChangeEventConsumer) handle(ctx context.Context, m kafka.Message) error {
	event, err := DecodeChangeEvent(m.Value)
	if err != nil {
		return err
	}
	return c.subscriber.OnSignificantChange(ctx, event)
}

// Processed returns the number of events handed to the subscriber successfully.
func (c *ChangeEventConsumer) Processed() int64 { return c.processed.Load() }

// Failed returns the number of dropped events.
func (c *ChangeEventConsumer) Failed() int64 { return c.failed.Load() }

// Close closes the reader.
func (c *ChangeEventConsumer) Close() error {
	return c.reader.Close()
}
