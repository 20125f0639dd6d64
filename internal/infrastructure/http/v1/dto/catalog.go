package dto

import (
	"stockledger/internal/core/id"
)

// CreateCatalogRequest is the body of POST /catalog/:kind.
type CreateCatalogRequest struct {
	ParentID *id.ID `json:"parentId"`
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
}
