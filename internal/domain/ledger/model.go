// Package ledger records immutable stock movements and projects them into balances.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog"
)

// MovementType is the kind of stock movement.
type MovementType string

const (
	MovementIn       MovementType = "IN"
	MovementOut      MovementType = "OUT"
	MovementTransfer MovementType = "TRANSFER"
	MovementAdjust   MovementType = "ADJUST"
)

// ParseMovementType validates a type name.
func ParseMovementType(s string) (MovementType, error) {
	switch t := MovementType(strings.ToUpper(s)); t {
	case MovementIn, MovementOut, MovementTransfer, MovementAdjust:
		return t, nil
	}
	return "", apperror.NewValidation("invalid movement type").WithDetail("type", s)
}

// StockKey identifies one balance row.
type StockKey struct {
	TenantID    id.ID  `db:"tenant_id" json:"tenantId"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	VariantID   *id.ID `db:"variant_id" json:"variantId,omitempty"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	LocationID  *id.ID `db:"location_id" json:"locationId,omitempty"`
	BatchID     *id.ID `db:"batch_id" json:"batchId,omitempty"`
	SeriesID    *id.ID `db:"series_id" json:"seriesId,omitempty"`
}

// String renders the key; absent parts are "-". Used as cache and map key.
func (k StockKey) String() string {
	part := func(v *id.ID) string {
		if v == nil {
			return "-"
		}
		return v.String()
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s/%s",
		k.TenantID, k.ProductID, part(k.VariantID), k.WarehouseID,
		part(k.LocationID), part(k.BatchID), part(k.SeriesID))
}

// Refs returns the catalog references of the key.
func (k StockKey) Refs() catalog.Refs {
	return catalog.Refs{
		ProductID:   k.ProductID,
		VariantID:   k.VariantID,
		WarehouseID: k.WarehouseID,
		LocationID:  k.LocationID,
		BatchID:     k.BatchID,
		SeriesID:    k.SeriesID,
	}
}

// Balance is the projected aggregate at a stock key.
type Balance struct {
	ID id.ID `db:"id" json:"id"`
	StockKey
	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	ReservedQuantity types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`
	Version          int64          `db:"version" json:"version"`
	LastMovementAt   *time.Time     `db:"last_movement_at" json:"lastMovementAt,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// Available is quantity minus reserved. It is never stored.
func (b Balance) Available() types.Quantity {
	return b.Quantity - b.ReservedQuantity
}

// check verifies quantity >= 0, reserved >= 0 and reserved <= quantity.
func (b Balance) check() error {
	if b.Quantity < 0 || b.ReservedQuantity < 0 || b.ReservedQuantity > b.Quantity {
		return fmt.Errorf("balance %s violates invariants: quantity=%s reserved=%s",
			b.StockKey, b.Quantity, b.ReservedQuantity)
	}
	return nil
}

// Movement is an immutable fact. Corrections are new movements.
type Movement struct {
	ID                     id.ID          `db:"id" json:"id"`
	TenantID               id.ID          `db:"tenant_id" json:"tenantId"`
	ProductID              id.ID          `db:"product_id" json:"productId"`
	VariantID              *id.ID         `db:"variant_id" json:"variantId,omitempty"`
	Type                   MovementType   `db:"type" json:"type"`
	Quantity               types.Quantity `db:"quantity" json:"quantity"`
	WarehouseID            id.ID          `db:"warehouse_id" json:"warehouseId"`
	LocationID             *id.ID         `db:"location_id" json:"locationId,omitempty"`
	DestinationWarehouseID *id.ID         `db:"destination_warehouse_id" json:"destinationWarehouseId,omitempty"`
	DestinationLocationID  *id.ID         `db:"destination_location_id" json:"destinationLocationId,omitempty"`
	BatchID                *id.ID         `db:"batch_id" json:"batchId,omitempty"`
	SeriesID               *id.ID         `db:"series_id" json:"seriesId,omitempty"`
	DocumentID             *id.ID         `db:"document_id" json:"documentId,omitempty"`
	ReservationID          *id.ID         `db:"reservation_id" json:"reservationId,omitempty"`
	Reference              string         `db:"reference" json:"reference,omitempty"`
	Notes                  string         `db:"notes" json:"notes,omitempty"`
	UnitCost               *types.Money   `db:"unit_cost" json:"unitCost,omitempty"`
	TotalCost              *types.Money   `db:"total_cost" json:"totalCost,omitempty"`
	CreatedBy              string         `db:"created_by" json:"createdBy"`
	CreatedAt              time.Time      `db:"created_at" json:"createdAt"`
}

// SourceKey is the key a movement acts on: the source of OUT/TRANSFER, the target of IN/ADJUST.
func (m *Movement) SourceKey() StockKey {
	return StockKey{
		TenantID:    m.TenantID,
		ProductID:   m.ProductID,
		VariantID:   m.VariantID,
		WarehouseID: m.WarehouseID,
		LocationID:  m.LocationID,
		BatchID:     m.BatchID,
		SeriesID:    m.SeriesID,
	}
}

// DestinationKey is the inbound key of a TRANSFER.
func (m *Movement) DestinationKey() StockKey {
	k := m.SourceKey()
	if m.DestinationWarehouseID != nil {
		k.WarehouseID = *m.DestinationWarehouseID
	}
	k.LocationID = m.DestinationLocationID
	return k
}

// Leg is a signed quantity change at one key.
type Leg struct {
	Key   StockKey
	Delta types.Quantity
}

// Legs expands a movement into its signed balance changes.
// IN is positive, OUT negative, TRANSFER one negative and one positive leg, ADJUST signed.
func (m *Movement) Legs() []Leg {
	switch m.Type {
	case MovementIn:
		return []Leg{{Key: m.SourceKey(), Delta: m.Quantity.Abs()}}
	case MovementOut:
		return []Leg{{Key: m.SourceKey(), Delta: -m.Quantity.Abs()}}
	case MovementTransfer:
		return []Leg{
			{Key: m.SourceKey(), Delta: -m.Quantity.Abs()},
			{Key: m.DestinationKey(), Delta: m.Quantity.Abs()},
		}
	case MovementAdjust:
		return []Leg{{Key: m.SourceKey(), Delta: m.Quantity}}
	}
	return nil
}

// Draft is the input of Append.
type Draft struct {
	ProductID              id.ID          `json:"productId"`
	VariantID              *id.ID         `json:"variantId,omitempty"`
	Type                   MovementType   `json:"type"`
	Quantity               types.Quantity `json:"quantity"`
	WarehouseID            id.ID          `json:"warehouseId"`
	LocationID             *id.ID         `json:"locationId,omitempty"`
	DestinationWarehouseID *id.ID         `json:"destinationWarehouseId,omitempty"`
	DestinationLocationID  *id.ID         `json:"destinationLocationId,omitempty"`
	BatchID                *id.ID         `json:"batchId,omitempty"`
	SeriesID               *id.ID         `json:"seriesId,omitempty"`
	Reference              string         `json:"reference,omitempty"`
	Notes                  string         `json:"notes,omitempty"`
	UnitCost               *types.Money   `json:"unitCost,omitempty"`

	// DocumentID is set by the document processor on confirmation. It is never
	// decoded from a request body.
	DocumentID *id.ID `json:"-"`
}

// Validate checks the draft shape. Catalog references are checked by the service.
func (d *Draft) Validate() error {
	if _, err := ParseMovementType(string(d.Type)); err != nil {
		return err
	}
	if id.IsNil(d.ProductID) {
		return apperror.NewValidation("productId is required").WithDetail("field", "productId")
	}
	if id.IsNil(d.WarehouseID) {
		return apperror.NewValidation("warehouseId is required").WithDetail("field", "warehouseId")
	}

	switch d.Type {
	case MovementAdjust:
		if d.Quantity.IsZero() {
			return apperror.NewInvalidQuantity("adjustment quantity must not be zero")
		}
	default:
		if !d.Quantity.IsPositive() {
			return apperror.NewInvalidQuantity("quantity must be positive").
				WithDetail("quantity", d.Quantity.String())
		}
	}

	if d.Type == MovementTransfer {
		if d.DestinationWarehouseID == nil {
			return apperror.NewValidation("destinationWarehouseId is required for TRANSFER").
				WithDetail("field", "destinationWarehouseId")
		}
		if *d.DestinationWarehouseID == d.WarehouseID && id.Equal(d.DestinationLocationID, d.LocationID) {
			return apperror.NewValidation("transfer source and destination are the same")
		}
	} else if d.DestinationWarehouseID != nil || d.DestinationLocationID != nil {
		return apperror.NewValidation("destination is only allowed for TRANSFER").
			WithDetail("field", "destinationWarehouseId")
	}

	if d.UnitCost != nil && d.UnitCost.IsNegative() {
		return apperror.NewValidation("unitCost must not be negative").WithDetail("field", "unitCost")
	}
	return nil
}

func (d *Draft) sourceRefs() catalog.Refs {
	return catalog.Refs{
		ProductID:   d.ProductID,
		VariantID:   d.VariantID,
		WarehouseID: d.WarehouseID,
		LocationID:  d.LocationID,
		BatchID:     d.BatchID,
		SeriesID:    d.SeriesID,
	}
}

func (d *Draft) destinationRefs() catalog.Refs {
	r := d.sourceRefs()
	r.WarehouseID = *d.DestinationWarehouseID
	r.LocationID = d.DestinationLocationID
	return r
}
