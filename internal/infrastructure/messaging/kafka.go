// Package messaging relays outbox events to Kafka.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockflow/internal/infrastructure/storage/postgres"
)

var tracer = otel.Tracer("stockflow/messaging")

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates a synchronous writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// KafkaPublisher delivers outbox messages. Messages are keyed by aggregate
// id, so events of one document or product stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
}

var _ postgres.OutboxHandler = (*KafkaPublisher)(nil)

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	ctx, span := tracer.Start(ctx, "outbox publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("event.type", msg.EventType),
			attribute.String("event.id", msg.ID.String()),
		))
	defer span.End()

	km := kafka.Message{
		Key:   []byte(msg.AggregateID.String()),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(msg.ID.String())},
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "aggregate_type", Value: []byte(msg.AggregateType)},
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(&km.Headers))

	if err := p.writer.WriteMessages(ctx, km); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write %s to kafka: %w", msg.EventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts Kafka headers to propagation.TextMapCarrier.
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, h := range *c {
		keys[i] = h.Key
	}
	return keys
}
