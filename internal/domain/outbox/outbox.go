// Package outbox defines the transactional outbox used to push ledger events to external systems.
// Messages are written in the same transaction as the change they describe and relayed later.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/core/id"
)

// Event types.
const (
	EventMovementRecorded   = "stock.movement.recorded"
	EventReservationChanged = "stock.reservation.changed"
	EventDocumentCompleted  = "document.completed"
)

// Message is one outbox row.
type Message struct {
	ID            id.ID           `db:"id" json:"id"`
	TenantID      id.ID           `db:"tenant_id" json:"tenantId"`
	AggregateType string          `db:"aggregate_type" json:"aggregateType"`
	AggregateID   id.ID           `db:"aggregate_id" json:"aggregateId"`
	EventType     string          `db:"event_type" json:"eventType"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	RetryCount    int             `db:"retry_count" json:"-"`
}

// NewMessage marshals payload into a message.
func NewMessage(tenantID id.ID, aggregateType string, aggregateID id.ID, eventType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Message{
		ID:            id.New(),
		TenantID:      tenantID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Writer enqueues messages through the transaction in ctx.
type Writer interface {
	Enqueue(ctx context.Context, msgs ...Message) error
}

// Publisher delivers relayed messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Store is the relay side of the outbox.
type Store interface {
	Writer

	// ClaimPending returns up to limit messages due at now, oldest first, locked for
	// the transaction in ctx. Rows locked by another relay are skipped.
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]Message, error)

	// MarkPublished records successful delivery.
	MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error

	// MarkFailed records a failed attempt and schedules the next one. A message that
	// reached maxRetries is parked as failed and no longer claimed.
	MarkFailed(ctx context.Context, msgID id.ID, reason string, nextAttempt time.Time, maxRetries int) error
}
