package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	// DefaultPublishTimeout bounds one publish, which runs inline with Assign.
	DefaultPublishTimeout = 2 * time.Second

	// Assignments publish one message at a time; waiting for a fuller batch only adds latency.
	writerBatchTimeout = 10 * time.Millisecond
)

// KafkaPublisher streams assignment events to a Kafka topic keyed by ticket id.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers. A
// non-positive timeout selects DefaultPublishTimeout.
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration, logger *zap.Logger) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: writerBatchTimeout,
		WriteTimeout: timeout,
	}, logger).WithPublishTimeout(timeout)
}

// NewKafkaPublisherWithWriter creates a publisher on an existing writer.
func NewKafkaPublisherWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, timeout: DefaultPublishTimeout, logger: logger}
}

// WithPublishTimeout sets the per-event write bound and returns p.
func (p *KafkaPublisher) WithPublishTimeout(timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	p.timeout = timeout
	return p
}

// Handle is an EventHandler that forwards the event.
func (p *KafkaPublisher) Handle(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event %s: %w", event.ID, err)
	}
	p.logger.Debug("event sent to kafka",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	return nil
}

// Close closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
