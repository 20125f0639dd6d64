package dto

import (
	"stockledger/internal/core/types"
	"stockledger/internal/domain/reservation"
)

// ReservationQuery is the query string of GET /reservations.
type ReservationQuery struct {
	ProductID   string `form:"productId"`
	WarehouseID string `form:"warehouseId"`
	LocationID  string `form:"locationId"`
	Status      string `form:"status"`
	ReferenceID string `form:"referenceId"`
}

// Filter converts the query into a reservation filter.
func (q ReservationQuery) Filter() (reservation.ListFilter, error) {
	var (
		f   reservation.ListFilter
		err error
	)
	if f.ProductID, err = optionalID("productId", q.ProductID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = optionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.LocationID, err = optionalID("locationId", q.LocationID); err != nil {
		return f, err
	}
	if q.Status != "" {
		st, err := reservation.ParseStatus(q.Status)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	f.ReferenceID = q.ReferenceID
	return f, nil
}

// FulfillRequest is the body of POST /reservations/:id/fulfill.
// Without a quantity the whole remaining hold is fulfilled.
type FulfillRequest struct {
	Quantity *types.Quantity `json:"quantity"`
}
