// Package audit defines the audit trail contract of the ledger.
// Every mutating operation writes exactly one Entry inside its own transaction.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// Action is the audited operation.
type Action string

const (
	ActionCreate       Action = "CREATE"
	ActionUpdate       Action = "UPDATE"
	ActionDelete       Action = "DELETE"
	ActionConfirm      Action = "CONFIRM"
	ActionFulfill      Action = "FULFILL"
	ActionCancel       Action = "CANCEL"
	ActionExpire       Action = "EXPIRE"
	ActionStatusUpdate Action = "STATUS_UPDATE"
)

// Entity types used in entries.
const (
	EntityMovement    = "stock_movement"
	EntityReservation = "stock_reservation"
	EntityDocument    = "document"
	EntityCatalog     = "catalog_item"
)

// Entry is one audit record.
type Entry struct {
	ID         id.ID
	TenantID   id.ID
	EntityType string
	EntityID   id.ID
	Action     Action
	UserID     string
	Before     any
	After      any
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Sink persists entries. Implementations must write through the transaction in ctx.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// Record builds an entry for the actor and writes it.
func Record(ctx context.Context, sink Sink, a actor.Actor, entityType string, entityID id.ID,
	action Action, before, after any, meta map[string]any) error {
	return sink.Write(ctx, Entry{
		ID:         id.New(),
		TenantID:   a.TenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     a.UserID,
		Before:     before,
		After:      after,
		Metadata:   meta,
		CreatedAt:  time.Now().UTC(),
	})
}

// LogEntry is an entry as read back from the trail. Changes holds {"before", "after"}.
type LogEntry struct {
	ID         id.ID           `db:"id" json:"id"`
	TenantID   id.ID           `db:"tenant_id" json:"tenantId"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`
	Action     Action          `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"userId"`
	Changes    json.RawMessage `db:"changes" json:"changes"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// Reader returns the newest entries of one entity.
type Reader interface {
	History(ctx context.Context, tenantID id.ID, entityType string, entityID id.ID, limit int) ([]LogEntry, error)
}

// ParseEntityType maps a route segment ("movements", "documents", ...) to an entity type.
func ParseEntityType(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movements", EntityMovement:
		return EntityMovement, nil
	case "reservations", EntityReservation:
		return EntityReservation, nil
	case "documents", EntityDocument:
		return EntityDocument, nil
	case "catalog", EntityCatalog:
		return EntityCatalog, nil
	}
	return "", apperror.NewValidation("unknown audit entity").WithDetail("entity", s)
}
