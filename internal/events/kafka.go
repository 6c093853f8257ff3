package events

import (
	"context"
	"encoding/json"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	BatchTimeout = 10 * time.Millisecond
	BatchSize    = 1
)

// MessageWriter is the traced writer surface the publisher needs.
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event, keyed by the entity so that
// changes to the same product or order stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// NewKafkaWriter builds a trace-propagating writer for topic.
func NewKafkaWriter(brokers []string, topic, clientID string, tp trace.TracerProvider) (MessageWriter, error) {
	baseWriter := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: BatchTimeout,
		BatchSize:    BatchSize,
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "kafka writer")
	}
	return writer, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, evs ...Event) error {
	for _, ev := range evs {
		value, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrapf(err, "marshal %s event", ev.Action)
		}

		// WriteMessage (singular) keeps one producer span per message
		msg := kafka.Message{
			Key:   []byte(ev.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(ev.Type)},
				{Key: "event-action", Value: []byte(ev.Action)},
			},
		}
		if err := p.writer.WriteMessage(ctx, msg); err != nil {
			return errors.Wrapf(err, "publish %s event", ev.Action)
		}
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
