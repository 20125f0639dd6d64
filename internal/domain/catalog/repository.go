package catalog

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// ListFilter narrows catalog listings.
type ListFilter struct {
	Kind     Kind
	ParentID *id.ID
	Search   string
	domain.Page
}

// Repository persists catalog items. Every lookup is tenant-scoped:
// an item of another tenant is reported as NotFound.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, tenantID id.ID, kind Kind, itemID id.ID) (*Item, error)
	List(ctx context.Context, tenantID id.ID, f ListFilter) ([]Item, int64, error)
}
