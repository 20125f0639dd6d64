package memory

import (
	"context"
	"sort"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalog"
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct{ s *Store }

// Catalog returns the catalog repository.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

var _ catalog.Repository = (*CatalogRepo)(nil)

func (r *CatalogRepo) Create(ctx context.Context, item *catalog.Item) error {
	return r.s.write(ctx, func(d *state) error {
		for _, it := range d.catalog {
			if it.TenantID == item.TenantID && it.Kind == item.Kind && strings.EqualFold(it.Code, item.Code) {
				return apperror.NewValidation("code already exists").
					WithDetail("kind", string(item.Kind)).WithDetail("code", item.Code)
			}
		}
		d.catalog[item.ID] = *item
		return nil
	})
}

func (r *CatalogRepo) Get(ctx context.Context, tenantID id.ID, kind catalog.Kind, itemID id.ID) (*catalog.Item, error) {
	var out *catalog.Item
	r.s.read(ctx, func(d *state) {
		if it, ok := d.catalog[itemID]; ok && it.TenantID == tenantID && it.Kind == kind {
			out = &it
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound(string(kind), itemID.String())
	}
	return out, nil
}

func (r *CatalogRepo) List(ctx context.Context, tenantID id.ID, f catalog.ListFilter) ([]catalog.Item, int64, error) {
	var items []catalog.Item
	search := strings.ToLower(f.Search)
	r.s.read(ctx, func(d *state) {
		for _, it := range d.catalog {
			if it.TenantID != tenantID || it.Kind != f.Kind {
				continue
			}
			if f.ParentID != nil && !id.Equal(it.ParentID, f.ParentID) {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(it.Code), search) &&
				!strings.Contains(strings.ToLower(it.Name), search) {
				continue
			}
			items = append(items, it)
		}
	})
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	lo, hi := window(len(items), f.Limit, f.Offset)
	return items[lo:hi], int64(len(items)), nil
}
