// Package memtest builds a fully wired ledger on the memory store for tests.
package memtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/core/actor"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/memory"
)

// Fixture is one tenant with a product and two warehouses.
type Fixture struct {
	Store    *memory.Store
	Services *app.Services
	Actor    actor.Actor

	Product    id.ID
	Warehouse1 id.ID
	Warehouse2 id.ID
}

// New creates a fixture. opts may set observers, caches or an approver.
func New(t testing.TB, opts ...func(*app.Options)) *Fixture {
	t.Helper()

	var o app.Options
	for _, fn := range opts {
		fn(&o)
	}
	store := memory.New()
	f := &Fixture{
		Store:    store,
		Services: app.NewServices(store.Stores(), o),
		Actor:    actor.New(id.New(), "tester"),
	}
	f.Product = f.CreateItem(t, catalog.KindProduct, nil, "P-1")
	f.Warehouse1 = f.CreateItem(t, catalog.KindWarehouse, nil, "W1")
	f.Warehouse2 = f.CreateItem(t, catalog.KindWarehouse, nil, "W2")
	return f
}

// CreateItem adds a catalog item for the fixture tenant.
func (f *Fixture) CreateItem(t testing.TB, kind catalog.Kind, parent *id.ID, code string) id.ID {
	t.Helper()
	item, err := f.Services.Catalog.Create(context.Background(), f.Actor, catalog.CreateInput{
		Kind:     kind,
		ParentID: parent,
		Code:     code,
		Name:     code,
	})
	require.NoError(t, err)
	return item.ID
}

// Key returns the product key at a warehouse.
func (f *Fixture) Key(warehouseID id.ID) ledger.StockKey {
	return ledger.StockKey{TenantID: f.Actor.TenantID, ProductID: f.Product, WarehouseID: warehouseID}
}

// Receive books qty units of the product into a warehouse.
func (f *Fixture) Receive(t testing.TB, warehouseID id.ID, qty int64) *ledger.Movement {
	t.Helper()
	m, err := f.Services.Ledger.Append(context.Background(), f.Actor, ledger.Draft{
		Type:        ledger.MovementIn,
		ProductID:   f.Product,
		WarehouseID: warehouseID,
		Quantity:    types.NewQuantity(qty),
	})
	require.NoError(t, err)
	return m
}

// Balance reads the balance of the product at a warehouse; an untouched key reads as zero.
func (f *Fixture) Balance(t testing.TB, warehouseID id.ID) ledger.Balance {
	t.Helper()
	b, err := f.Store.Balances().Get(context.Background(), f.Key(warehouseID))
	require.NoError(t, err)
	if b == nil {
		return ledger.Balance{StockKey: f.Key(warehouseID)}
	}
	return *b
}

// Movements lists every movement of the fixture tenant, newest first.
func (f *Fixture) Movements(t testing.TB, filter ledger.MovementFilter) []ledger.Movement {
	t.Helper()
	items, _, err := f.Store.Movements().List(context.Background(), f.Actor.TenantID, filter)
	require.NoError(t, err)
	return items
}
