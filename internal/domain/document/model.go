// Package document drives warehouse documents through their lifecycle and turns
// confirmed documents into ledger movements exactly once.
package document

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Type is the closed set of document types.
type Type string

const (
	TypePurchaseOrder       Type = "PURCHASE_ORDER"
	TypeSalesOrder          Type = "SALES_ORDER"
	TypeInventoryTransfer   Type = "INVENTORY_TRANSFER"
	TypeInventoryAdjustment Type = "INVENTORY_ADJUSTMENT"
	TypeGoodsReceipt        Type = "GOODS_RECEIPT"
	TypeGoodsIssue          Type = "GOODS_ISSUE"
	TypeReturn              Type = "RETURN"
	TypeCycleCount          Type = "CYCLE_COUNT"
)

// Types lists every document type.
var Types = []Type{
	TypePurchaseOrder, TypeSalesOrder, TypeInventoryTransfer, TypeInventoryAdjustment,
	TypeGoodsReceipt, TypeGoodsIssue, TypeReturn, TypeCycleCount,
}

// ParseType validates a type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(s))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", apperror.NewValidation("invalid document type").WithDetail("type", s)
}

// NumberPrefix returns the numbering prefix of t.
func (t Type) NumberPrefix() string {
	switch t {
	case TypePurchaseOrder:
		return "PO"
	case TypeSalesOrder:
		return "SO"
	case TypeInventoryTransfer:
		return "TR"
	case TypeInventoryAdjustment:
		return "ADJ"
	case TypeGoodsReceipt:
		return "GR"
	case TypeGoodsIssue:
		return "GI"
	case TypeReturn:
		return "RET"
	case TypeCycleCount:
		return "CC"
	}
	return "DOC"
}

// Status is the document lifecycle state.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusPending    Status = "PENDING"
	StatusApproved   Status = "APPROVED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusRejected   Status = "REJECTED"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusDraft, StatusPending, StatusApproved, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusRejected:
		return st, nil
	}
	return "", apperror.NewValidation("invalid document status").WithDetail("status", s)
}

// manualTransitions are the non-emitting status changes. APPROVED, IN_PROGRESS and
// COMPLETED are only entered by Confirm.
var manualTransitions = map[Status][]Status{
	StatusDraft:      {StatusPending, StatusRejected, StatusCancelled},
	StatusPending:    {StatusDraft, StatusRejected, StatusCancelled},
	StatusApproved:   {StatusCancelled},
	StatusInProgress: {StatusCancelled},
}

// CanTransition reports whether a manual transition from → to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range manualTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Line is one document row.
type Line struct {
	ID         id.ID          `db:"id" json:"id"`
	DocumentID id.ID          `db:"document_id" json:"-"`
	LineNo     int            `db:"line_no" json:"lineNo"`
	ProductID  id.ID          `db:"product_id" json:"productId"`
	VariantID  *id.ID         `db:"variant_id" json:"variantId,omitempty"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
	// WarehouseID and LocationID override the document's warehouse for this line.
	WarehouseID *id.ID       `db:"warehouse_id" json:"warehouseId,omitempty"`
	LocationID  *id.ID       `db:"location_id" json:"locationId,omitempty"`
	BatchID     *id.ID       `db:"batch_id" json:"batchId,omitempty"`
	SeriesID    *id.ID       `db:"series_id" json:"seriesId,omitempty"`
	UnitPrice   *types.Money `db:"unit_price" json:"unitPrice,omitempty"`
	Notes       string       `db:"notes" json:"notes,omitempty"`
}

// Document is a business transaction envelope.
type Document struct {
	ID                     id.ID             `db:"id" json:"id"`
	TenantID               id.ID             `db:"tenant_id" json:"tenantId"`
	Number                 string            `db:"number" json:"number"`
	Type                   Type              `db:"type" json:"type"`
	Status                 Status            `db:"status" json:"status"`
	WarehouseID            *id.ID            `db:"warehouse_id" json:"warehouseId,omitempty"`
	LocationID             *id.ID            `db:"location_id" json:"locationId,omitempty"`
	DestinationWarehouseID *id.ID            `db:"destination_warehouse_id" json:"destinationWarehouseId,omitempty"`
	DestinationLocationID  *id.ID            `db:"destination_location_id" json:"destinationLocationId,omitempty"`
	PartnerReference       string            `db:"partner_reference" json:"partnerReference,omitempty"`
	Notes                  string            `db:"notes" json:"notes,omitempty"`
	Metadata               map[string]string `db:"metadata" json:"metadata,omitempty"`
	Lines                  []Line            `db:"-" json:"lines"`
	CreatedBy              string            `db:"created_by" json:"createdBy"`
	CreatedAt              time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time         `db:"updated_at" json:"updatedAt"`
	ConfirmedBy            string            `db:"confirmed_by" json:"confirmedBy,omitempty"`
	ConfirmedAt            *time.Time        `db:"confirmed_at" json:"confirmedAt,omitempty"`
	Version                int64             `db:"version" json:"version"`
}

// TotalQuantity sums absolute line quantities.
func (d *Document) TotalQuantity() types.Quantity {
	var total types.Quantity
	for _, l := range d.Lines {
		total = total.Add(l.Quantity.Abs())
	}
	return total
}

// TotalAmount sums quantity times unit price over priced lines.
func (d *Document) TotalAmount() types.Money {
	total := types.Money{}
	for _, l := range d.Lines {
		if l.UnitPrice != nil {
			total = total.Add(l.Quantity.Abs().Cost(*l.UnitPrice))
		}
	}
	return total
}

// lineWarehouse resolves the source warehouse/location of a line.
func (d *Document) lineWarehouse(l Line) (*id.ID, *id.ID) {
	if l.WarehouseID != nil {
		return l.WarehouseID, l.LocationID
	}
	loc := l.LocationID
	if loc == nil {
		loc = d.LocationID
	}
	return d.WarehouseID, loc
}

// Input is the editable part of a document.
type Input struct {
	Type                   Type              `json:"type"`
	WarehouseID            *id.ID            `json:"warehouseId,omitempty"`
	LocationID             *id.ID            `json:"locationId,omitempty"`
	DestinationWarehouseID *id.ID            `json:"destinationWarehouseId,omitempty"`
	DestinationLocationID  *id.ID            `json:"destinationLocationId,omitempty"`
	PartnerReference       string            `json:"partnerReference,omitempty"`
	Notes                  string            `json:"notes,omitempty"`
	Metadata               map[string]string `json:"metadata,omitempty"`
	Lines                  []LineInput       `json:"lines"`
}

// LineInput is one requested line.
type LineInput struct {
	ProductID   id.ID          `json:"productId"`
	VariantID   *id.ID         `json:"variantId,omitempty"`
	Quantity    types.Quantity `json:"quantity"`
	WarehouseID *id.ID         `json:"warehouseId,omitempty"`
	LocationID  *id.ID         `json:"locationId,omitempty"`
	BatchID     *id.ID         `json:"batchId,omitempty"`
	SeriesID    *id.ID         `json:"seriesId,omitempty"`
	UnitPrice   *types.Money   `json:"unitPrice,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// Validate checks the input shape. Warehouse requirements depend on the type.
func (in *Input) Validate() error {
	if _, err := ParseType(string(in.Type)); err != nil {
		return err
	}
	if len(in.Lines) == 0 {
		return apperror.NewValidation("document must have at least one line").WithDetail("field", "lines")
	}
	for i, l := range in.Lines {
		if id.IsNil(l.ProductID) {
			return apperror.NewValidation("productId is required").WithDetail("line", i+1)
		}
		switch {
		case in.Type == TypeInventoryAdjustment:
			if l.Quantity.IsZero() {
				return apperror.NewInvalidQuantity("adjustment quantity must not be zero").WithDetail("line", i+1)
			}
		case !l.Quantity.IsPositive():
			return apperror.NewInvalidQuantity("line quantity must be positive").WithDetail("line", i+1)
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return apperror.NewValidation("unitPrice must not be negative").WithDetail("line", i+1)
		}
		if in.WarehouseID == nil && l.WarehouseID == nil {
			return apperror.NewValidation("warehouseId is required on the document or the line").WithDetail("line", i+1)
		}
	}
	if in.Type == TypeInventoryTransfer {
		if in.DestinationWarehouseID == nil {
			return apperror.NewValidation("destinationWarehouseId is required for transfers").
				WithDetail("field", "destinationWarehouseId")
		}
	} else if in.DestinationWarehouseID != nil || in.DestinationLocationID != nil {
		return apperror.NewValidation("destination is only allowed on transfers").
			WithDetail("field", "destinationWarehouseId")
	}
	return nil
}

// lines builds document lines from input.
func (in *Input) lines(documentID id.ID) []Line {
	out := make([]Line, len(in.Lines))
	for i, l := range in.Lines {
		out[i] = Line{
			ID:          id.New(),
			DocumentID:  documentID,
			LineNo:      i + 1,
			ProductID:   l.ProductID,
			VariantID:   id.Clone(l.VariantID),
			Quantity:    l.Quantity,
			WarehouseID: id.Clone(l.WarehouseID),
			LocationID:  id.Clone(l.LocationID),
			BatchID:     id.Clone(l.BatchID),
			SeriesID:    id.Clone(l.SeriesID),
			UnitPrice:   l.UnitPrice,
			Notes:       l.Notes,
		}
	}
	return out
}
