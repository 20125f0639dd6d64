// Package messaging connects the ledger to Kafka: outbox events go out on the
// movements topic and ERP stock levels come in on the levels topic.
package messaging

import (
	"context"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Default topics.
const (
	TopicMovements   = "stock.movements"
	TopicStockLevels = "erp.stock-levels"
)

// Producer writes one message.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Consumer reads one message; offsets are committed by the consumer group.
type Consumer interface {
	ReadMessage(ctx context.Context) (*kafka.Message, error)
	Close() error
}

// Config describes the Kafka connection.
type Config struct {
	Brokers        []string
	MovementsTopic string
	LevelsTopic    string
	GroupID        string
	ClientID       string
	BatchTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MovementsTopic == "" {
		c.MovementsTopic = TopicMovements
	}
	if c.LevelsTopic == "" {
		c.LevelsTopic = TopicStockLevels
	}
	if c.GroupID == "" {
		c.GroupID = "stockledger-ingest"
	}
	if c.ClientID == "" {
		c.ClientID = "stockledger"
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	return c
}

// NewProducer creates a traced writer for the movements topic. Messages are
// keyed by aggregate id, so the hash balancer keeps per-aggregate order.
func NewProducer(cfg Config, tp trace.TracerProvider) (Producer, error) {
	cfg = cfg.withDefaults()
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.MovementsTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return otelkafka.NewWriter(w,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			attribute.String("messaging.destination.name", cfg.MovementsTopic),
			attribute.String("messaging.kafka.client_id", cfg.ClientID),
		}),
	)
}

// NewConsumer creates a traced group reader for the stock levels topic.
func NewConsumer(cfg Config, tp trace.TracerProvider) (Consumer, error) {
	cfg = cfg.withDefaults()
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.LevelsTopic,
		GroupID: cfg.GroupID,
	})
	return otelkafka.NewReader(r,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			attribute.String("messaging.destination.name", cfg.LevelsTopic),
			attribute.String("messaging.kafka.consumer.group", cfg.GroupID),
		}),
	)
}
