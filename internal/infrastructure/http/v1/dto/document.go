package dto

import (
	"stockledger/internal/domain/document"
)

// DocumentQuery is the query string of GET /documents.
type DocumentQuery struct {
	Type        string `form:"type"`
	Status      string `form:"status"`
	WarehouseID string `form:"warehouseId"`
	Search      string `form:"search"`
}

// Filter converts the query into a document filter.
func (q DocumentQuery) Filter() (document.ListFilter, error) {
	var (
		f   document.ListFilter
		err error
	)
	if q.Type != "" {
		t, err := document.ParseType(q.Type)
		if err != nil {
			return f, err
		}
		f.Type = &t
	}
	if q.Status != "" {
		st, err := document.ParseStatus(q.Status)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if f.WarehouseID, err = optionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	f.Search = q.Search
	return f, nil
}

// StatusRequest is the body of PATCH /documents/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// DocumentResponse adds computed totals to a document.
type DocumentResponse struct {
	*document.Document
	TotalQuantity string `json:"totalQuantity"`
	TotalAmount   string `json:"totalAmount"`
}

// FromDocument builds the response of d.
func FromDocument(d *document.Document) DocumentResponse {
	return DocumentResponse{
		Document:      d,
		TotalQuantity: d.TotalQuantity().String(),
		TotalAmount:   d.TotalAmount().String(),
	}
}
