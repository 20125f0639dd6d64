package document

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Repository persists documents together with their lines.
type Repository interface {
	// Create inserts the header and its lines.
	Create(ctx context.Context, d *Document) error

	// Get loads a document with lines.
	Get(ctx context.Context, tenantID, documentID id.ID) (*Document, error)

	// GetForUpdate loads and locks a document with lines until the transaction ends.
	GetForUpdate(ctx context.Context, tenantID, documentID id.ID) (*Document, error)

	// Update writes the header with an optimistic version check and, when
	// replaceLines is set, replaces all lines.
	Update(ctx context.Context, d *Document, replaceLines bool) error

	// Delete removes a document and cascades to its lines.
	Delete(ctx context.Context, tenantID, documentID id.ID) error

	// List returns headers without lines.
	List(ctx context.Context, tenantID id.ID, f ListFilter) ([]Document, int64, error)
}

// ListFilter narrows document listings.
type ListFilter struct {
	Type        *Type
	Status      *Status
	WarehouseID *id.ID
	Search      string
	domain.Page
}
