package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// EventTypeHeader carries the event type so consumers can route without
// decoding the body.
const EventTypeHeader = "event_type"

// Producer is the subset of *kafka.Writer the publisher needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter returns a writer that keeps every event of one payment on the
// same partition.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Publisher implements ports.EventPublisher on a Kafka topic.
type Publisher struct {
	producer Producer
	topic    string
	log      zerolog.Logger
}

// NewPublisher creates a new Publisher.
func NewPublisher(producer Producer, topic string, log zerolog.Logger) *Publisher {
	return &Publisher{producer: producer, topic: topic, log: log}
}

// Publish writes ev keyed by payment ID.
func (p *Publisher) Publish(ctx context.Context, ev domain.PaymentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.EventType, err)
	}

	headers := []kafka.Header{{Key: EventTypeHeader, Value: []byte(ev.EventType)}}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(ev.PaymentID),
		Value:   body,
		Headers: headers,
		Time:    ev.OccurredAt,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event for payment %s: %w", ev.EventType, ev.PaymentID, err)
	}

	p.log.Debug().
		Str("payment_id", ev.PaymentID).
		Str("event_type", ev.EventType).
		Msg("payment event published")
	return nil
}

// NopPublisher logs events instead of publishing them. Used when Kafka is
// disabled.
type NopPublisher struct {
	log zerolog.Logger
}

func NewNopPublisher(log zerolog.Logger) *NopPublisher {
	return &NopPublisher{log: log}
}

func (p *NopPublisher) Publish(_ context.Context, ev domain.PaymentEvent) error {
	p.log.Info().
		Str("payment_id", ev.PaymentID).
		Str("event_type", ev.EventType).
		Msg("payment event (kafka disabled)")
	return nil
}
