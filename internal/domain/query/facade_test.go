package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/query"
	"stockledger/internal/domain/reservation"
	"stockledger/internal/infrastructure/storage/memory/memtest"
)

type mapCache struct {
	rows map[string]ledger.Balance
	hits int
}

func (c *mapCache) GetBalance(_ context.Context, key ledger.StockKey) (*ledger.Balance, bool, error) {
	b, ok := c.rows[key.String()]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &b, true, nil
}

func (c *mapCache) SetBalance(_ context.Context, b *ledger.Balance) error {
	c.rows[b.StockKey.String()] = *b
	return nil
}

func balances(warehouseID *id.ID, page, limit int) query.BalanceQuery {
	return query.BalanceQuery{WarehouseID: warehouseID, Page: page, Limit: limit}
}

func TestGetBalance_ReadThrough(t *testing.T) {
	cache := &mapCache{rows: map[string]ledger.Balance{}}
	f := memtest.New(t, func(o *app.Options) { o.Cache = cache })
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 8)

	b, err := f.Services.Query.GetBalance(ctx, f.Actor, f.Key(f.Warehouse1))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(8), b.Quantity)
	assert.Zero(t, cache.hits)
	assert.Len(t, cache.rows, 1)

	b, err = f.Services.Query.GetBalance(ctx, f.Actor, f.Key(f.Warehouse1))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(8), b.Quantity)
	assert.Equal(t, 1, cache.hits)
}

func TestGetBalance_UntouchedKeyIsZero(t *testing.T) {
	cache := &mapCache{rows: map[string]ledger.Balance{}}
	f := memtest.New(t, func(o *app.Options) { o.Cache = cache })

	b, err := f.Services.Query.GetBalance(context.Background(), f.Actor, f.Key(f.Warehouse2))
	require.NoError(t, err)
	assert.True(t, b.Quantity.IsZero())
	assert.True(t, b.Available().IsZero())
	assert.Empty(t, cache.rows, "absent rows are not cached")
}

func TestGetBalance_ScopedToActorTenant(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 8)

	key := f.Key(f.Warehouse1)
	key.TenantID = id.New()
	b, err := f.Services.Query.GetBalance(context.Background(), f.Actor, key)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(8), b.Quantity, "tenant comes from the actor, not the key")
}

func TestListBalances(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 8)
	f.Receive(t, f.Warehouse2, 3)

	page, err := f.Services.Query.ListBalances(ctx, f.Actor, balances(nil, 1, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.EqualValues(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)

	page, err = f.Services.Query.ListBalances(ctx, f.Actor, balances(&f.Warehouse1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.Limit)
	require.Len(t, page.Items, 1)
	assert.Equal(t, types.NewQuantity(8), page.Items[0].Quantity)

	other := memtest.New(t)
	empty, err := other.Services.Query.ListBalances(ctx, other.Actor, balances(nil, 1, 10))
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestAvailabilitySummary(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 8)
	f.Receive(t, f.Warehouse2, 3)
	_, err := f.Services.Reservations.Reserve(ctx, f.Actor, reservation.CreateInput{
		ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: types.NewQuantity(2),
	})
	require.NoError(t, err)

	s, err := f.Services.Query.AvailabilitySummary(ctx, f.Actor, f.Product, nil)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(11), s.OnHand)
	assert.Equal(t, types.NewQuantity(2), s.Reserved)
	assert.Equal(t, types.NewQuantity(9), s.Available)

	s, err = f.Services.Query.AvailabilitySummary(ctx, f.Actor, f.Product, &f.Warehouse2)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(3), s.Available)
}

func TestListMovements(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 8)
	last := f.Receive(t, f.Warehouse1, 1)

	res, err := f.Services.Query.ListMovements(ctx, f.Actor, ledger.MovementFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalCount)
	assert.Equal(t, 50, res.Limit)
	assert.Equal(t, last.ID, res.Items[0].ID)
}
