// Package reservation manages soft holds on available stock.
package reservation

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

// Status is the reservation lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFulfilled Status = "FULFILLED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// IsOpen reports whether the reservation still holds stock.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusPending, StatusConfirmed, StatusFulfilled, StatusCancelled, StatusExpired:
		return st, nil
	}
	return "", apperror.NewValidation("invalid reservation status").WithDetail("status", s)
}

// Type classifies why stock is held.
type Type string

const (
	TypeOrder      Type = "ORDER"
	TypeAllocation Type = "ALLOCATION"
	TypeHold       Type = "HOLD"
	TypeQuarantine Type = "QUARANTINE"
)

// ParseType validates a type name. Empty input defaults to ORDER.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeOrder, nil
	}
	switch t := Type(strings.ToUpper(s)); t {
	case TypeOrder, TypeAllocation, TypeHold, TypeQuarantine:
		return t, nil
	}
	return "", apperror.NewValidation("invalid reservation type").WithDetail("type", s)
}

// DefaultPriority is used when a reservation is created without one.
const DefaultPriority = 5

// DefaultCancelReason is recorded when Cancel is called without a reason.
const DefaultCancelReason = "Manual cancellation"

// Reservation is a soft hold at a stock key.
// Until it is cancelled or expired, ReservedQuantity + FulfilledQuantity == Quantity.
type Reservation struct {
	ID                id.ID          `db:"id" json:"id"`
	TenantID          id.ID          `db:"tenant_id" json:"tenantId"`
	ProductID         id.ID          `db:"product_id" json:"productId"`
	VariantID         *id.ID         `db:"variant_id" json:"variantId,omitempty"`
	WarehouseID       id.ID          `db:"warehouse_id" json:"warehouseId"`
	LocationID        *id.ID         `db:"location_id" json:"locationId,omitempty"`
	BatchID           *id.ID         `db:"batch_id" json:"batchId,omitempty"`
	SeriesID          *id.ID         `db:"series_id" json:"seriesId,omitempty"`
	Quantity          types.Quantity `db:"quantity" json:"quantity"`
	ReservedQuantity  types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`
	FulfilledQuantity types.Quantity `db:"fulfilled_quantity" json:"fulfilledQuantity"`
	Status            Status         `db:"status" json:"status"`
	Type              Type           `db:"type" json:"type"`
	ReferenceID       string         `db:"reference_id" json:"referenceId,omitempty"`
	ReferenceType     string         `db:"reference_type" json:"referenceType,omitempty"`
	Priority          int            `db:"priority" json:"priority"`
	ExpiresAt         *time.Time     `db:"expires_at" json:"expiresAt,omitempty"`
	Notes             string         `db:"notes" json:"notes,omitempty"`
	CancelReason      string         `db:"cancel_reason" json:"cancelReason,omitempty"`
	CreatedBy         string         `db:"created_by" json:"createdBy"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
	Version           int64          `db:"version" json:"version"`
}

// Key returns the stock key the reservation holds.
func (r *Reservation) Key() ledger.StockKey {
	return ledger.StockKey{
		TenantID:    r.TenantID,
		ProductID:   r.ProductID,
		VariantID:   r.VariantID,
		WarehouseID: r.WarehouseID,
		LocationID:  r.LocationID,
		BatchID:     r.BatchID,
		SeriesID:    r.SeriesID,
	}
}

// IsExpired reports whether an open reservation is past its expiry.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status.IsOpen() && r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// transitions lists the statuses reachable from each status.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusFulfilled, StatusCancelled, StatusExpired},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CreateInput is the input of Reserve.
type CreateInput struct {
	ProductID     id.ID          `json:"productId"`
	VariantID     *id.ID         `json:"variantId,omitempty"`
	WarehouseID   id.ID          `json:"warehouseId"`
	LocationID    *id.ID         `json:"locationId,omitempty"`
	BatchID       *id.ID         `json:"batchId,omitempty"`
	SeriesID      *id.ID         `json:"seriesId,omitempty"`
	Quantity      types.Quantity `json:"quantity"`
	Type          Type           `json:"type,omitempty"`
	ReferenceID   string         `json:"referenceId,omitempty"`
	ReferenceType string         `json:"referenceType,omitempty"`
	Priority      int            `json:"priority,omitempty"`
	ExpiresAt     *time.Time     `json:"expiresAt,omitempty"`
	Notes         string         `json:"notes,omitempty"`
}

// Validate checks the input shape.
func (in *CreateInput) Validate(now time.Time) error {
	if id.IsNil(in.ProductID) {
		return apperror.NewValidation("productId is required").WithDetail("field", "productId")
	}
	if id.IsNil(in.WarehouseID) {
		return apperror.NewValidation("warehouseId is required").WithDetail("field", "warehouseId")
	}
	if !in.Quantity.IsPositive() {
		return apperror.NewInvalidQuantity("reservation quantity must be positive").
			WithDetail("quantity", in.Quantity.String())
	}
	if _, err := ParseType(string(in.Type)); err != nil {
		return err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return apperror.NewValidation("expiresAt must be in the future").WithDetail("field", "expiresAt")
	}
	if in.Priority < 0 {
		return apperror.NewValidation("priority must not be negative").WithDetail("field", "priority")
	}
	return nil
}
