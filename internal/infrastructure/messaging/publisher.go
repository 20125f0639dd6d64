package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"stockledger/internal/domain/outbox"
)

// Header names set on every published event.
const (
	HeaderEventType = "event-type"
	HeaderTenantID  = "tenant-id"
)

// OutboxPublisher implements outbox.Publisher over a Kafka producer.
type OutboxPublisher struct {
	producer Producer
}

var _ outbox.Publisher = (*OutboxPublisher)(nil)

func NewOutboxPublisher(p Producer) *OutboxPublisher {
	return &OutboxPublisher{producer: p}
}

// Publish writes the full message envelope, keyed by aggregate id.
func (p *OutboxPublisher) Publish(ctx context.Context, msg outbox.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbox message: %w", err)
	}
	err = p.producer.WriteMessage(ctx, kafka.Message{
		Key:   []byte(msg.AggregateID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderTenantID, Value: []byte(msg.TenantID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", msg.EventType, err)
	}
	return nil
}
