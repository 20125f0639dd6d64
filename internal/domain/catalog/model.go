// Package catalog holds the reference data movements point at: products, variants,
// warehouses, locations, batches and series. Every item belongs to exactly one tenant.
package catalog

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// Kind is the catalog an item belongs to.
type Kind string

const (
	KindProduct   Kind = "product"
	KindVariant   Kind = "variant"
	KindWarehouse Kind = "warehouse"
	KindLocation  Kind = "location"
	KindBatch     Kind = "batch"
	KindSeries    Kind = "series"
)

// Kinds lists every catalog kind.
func Kinds() []Kind {
	return []Kind{KindProduct, KindVariant, KindWarehouse, KindLocation, KindBatch, KindSeries}
}

// ParseKind accepts singular names ("warehouse") and plural route segments ("warehouses").
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if s == string(k) || s == k.plural() {
			return k, nil
		}
	}
	return "", apperror.NewValidation("unknown catalog kind").WithDetail("kind", s)
}

func (k Kind) plural() string {
	switch k {
	case KindBatch:
		return "batches"
	case KindSeries:
		return "series"
	default:
		return string(k) + "s"
	}
}

// ParentKind returns the kind an item is scoped to, or "" for top-level kinds.
// Variants belong to a product and locations to a warehouse.
func (k Kind) ParentKind() Kind {
	switch k {
	case KindVariant:
		return KindProduct
	case KindLocation:
		return KindWarehouse
	default:
		return ""
	}
}

// Item is one catalog record.
type Item struct {
	ID        id.ID     `db:"id" json:"id"`
	TenantID  id.ID     `db:"tenant_id" json:"tenantId"`
	Kind      Kind      `db:"kind" json:"kind"`
	ParentID  *id.ID    `db:"parent_id" json:"parentId,omitempty"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Validate checks required fields and parent scoping.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Code) == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if i.Kind.ParentKind() != "" && i.ParentID == nil {
		return apperror.NewValidation(string(i.Kind)+" requires a "+string(i.Kind.ParentKind())).
			WithDetail("field", "parentId")
	}
	return nil
}

// Refs are the catalog references carried by a movement, reservation or document line.
type Refs struct {
	ProductID   id.ID
	VariantID   *id.ID
	WarehouseID id.ID
	LocationID  *id.ID
	BatchID     *id.ID
	SeriesID    *id.ID
}
