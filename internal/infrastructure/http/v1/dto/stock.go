package dto

import (
	"strconv"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/query"
)

// CreateMovementRequest is the body of POST /movements. Reservation and document
// links are owned by the reservation and document workflows and are refused here.
type CreateMovementRequest struct {
	ledger.Draft
	ReservationID *id.ID `json:"reservationId"`
	DocumentID    *id.ID `json:"documentId"`
}

// ToDraft validates the request and returns the ledger draft.
func (r CreateMovementRequest) ToDraft() (ledger.Draft, error) {
	if r.ReservationID != nil {
		return ledger.Draft{}, apperror.NewValidation("reservationId cannot be set on a movement, fulfil the reservation instead").
			WithDetail("reservationId", r.ReservationID.String())
	}
	if r.DocumentID != nil {
		return ledger.Draft{}, apperror.NewValidation("documentId cannot be set on a movement, confirm the document instead").
			WithDetail("documentId", r.DocumentID.String())
	}
	return r.Draft, nil
}

// MovementQuery is the query string of GET /movements.
type MovementQuery struct {
	ProductID     string `form:"productId"`
	WarehouseID   string `form:"warehouseId"`
	Type          string `form:"type"`
	DocumentID    string `form:"documentId"`
	ReservationID string `form:"reservationId"`
	From          string `form:"from"`
	To            string `form:"to"`
}

// Filter converts the query into a movement filter. Paging is set by the caller.
func (q MovementQuery) Filter() (ledger.MovementFilter, error) {
	var (
		f   ledger.MovementFilter
		err error
	)
	if f.ProductID, err = optionalID("productId", q.ProductID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = optionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.DocumentID, err = optionalID("documentId", q.DocumentID); err != nil {
		return f, err
	}
	if f.ReservationID, err = optionalID("reservationId", q.ReservationID); err != nil {
		return f, err
	}
	if q.Type != "" {
		t, err := ledger.ParseMovementType(q.Type)
		if err != nil {
			return f, err
		}
		f.Type = &t
	}
	if f.From, err = optionalTime("from", q.From); err != nil {
		return f, err
	}
	if f.To, err = optionalTime("to", q.To); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, apperror.NewValidation("to must not be before from").WithDetail("field", "to")
	}
	return f, nil
}

// BalanceQuery is the query string of GET /balances.
type BalanceQuery struct {
	ProductID   string `form:"productId"`
	VariantID   string `form:"variantId"`
	WarehouseID string `form:"warehouseId"`
	LocationID  string `form:"locationId"`
	ExcludeZero string `form:"excludeZero"`
	Page        int    `form:"page"`
	Limit       int    `form:"limit"`
}

// Query converts the query string into a facade query.
func (q BalanceQuery) Query() (query.BalanceQuery, error) {
	var (
		out query.BalanceQuery
		err error
	)
	if out.ProductID, err = optionalID("productId", q.ProductID); err != nil {
		return out, err
	}
	if out.VariantID, err = optionalID("variantId", q.VariantID); err != nil {
		return out, err
	}
	if out.WarehouseID, err = optionalID("warehouseId", q.WarehouseID); err != nil {
		return out, err
	}
	if out.LocationID, err = optionalID("locationId", q.LocationID); err != nil {
		return out, err
	}
	if q.ExcludeZero != "" {
		v, err := strconv.ParseBool(q.ExcludeZero)
		if err != nil {
			return out, apperror.NewValidation("invalid excludeZero").WithDetail("excludeZero", q.ExcludeZero)
		}
		out.ExcludeZero = v
	}
	out.Page, out.Limit = q.Page, q.Limit
	return out, nil
}

// BalanceKeyQuery addresses one stock key in GET /balances/lookup.
type BalanceKeyQuery struct {
	ProductID   string `form:"productId" binding:"required"`
	VariantID   string `form:"variantId"`
	WarehouseID string `form:"warehouseId" binding:"required"`
	LocationID  string `form:"locationId"`
	BatchID     string `form:"batchId"`
	SeriesID    string `form:"seriesId"`
}

// Key builds the stock key of tenantID.
func (q BalanceKeyQuery) Key(tenantID id.ID) (ledger.StockKey, error) {
	k := ledger.StockKey{TenantID: tenantID}
	product, err := optionalID("productId", q.ProductID)
	if err != nil {
		return k, err
	}
	warehouse, err := optionalID("warehouseId", q.WarehouseID)
	if err != nil {
		return k, err
	}
	if product == nil || warehouse == nil {
		return k, apperror.NewValidation("productId and warehouseId are required")
	}
	k.ProductID, k.WarehouseID = *product, *warehouse
	if k.VariantID, err = optionalID("variantId", q.VariantID); err != nil {
		return k, err
	}
	if k.LocationID, err = optionalID("locationId", q.LocationID); err != nil {
		return k, err
	}
	if k.BatchID, err = optionalID("batchId", q.BatchID); err != nil {
		return k, err
	}
	if k.SeriesID, err = optionalID("seriesId", q.SeriesID); err != nil {
		return k, err
	}
	return k, nil
}

// SummaryQuery is the query string of GET /balances/summary.
type SummaryQuery struct {
	ProductID   string `form:"productId" binding:"required"`
	WarehouseID string `form:"warehouseId"`
}

// Parse returns the product and optional warehouse.
func (q SummaryQuery) Parse() (id.ID, *id.ID, error) {
	product, err := optionalID("productId", q.ProductID)
	if err != nil {
		return id.ID{}, nil, err
	}
	if product == nil {
		return id.ID{}, nil, apperror.NewValidation("productId is required").WithDetail("field", "productId")
	}
	warehouse, err := optionalID("warehouseId", q.WarehouseID)
	if err != nil {
		return id.ID{}, nil, err
	}
	return *product, warehouse, nil
}
