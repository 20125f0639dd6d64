package ledger_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/outbox"
	"stockledger/internal/infrastructure/storage/memory/memtest"
)

func qty(n int64) types.Quantity { return types.NewQuantity(n) }

func TestAppend_ReplayInvariant(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()

	steps := []ledger.Draft{
		{Type: ledger.MovementIn, Quantity: qty(40)},
		{Type: ledger.MovementIn, Quantity: qty(25)},
		{Type: ledger.MovementOut, Quantity: qty(10)},
		{Type: ledger.MovementAdjust, Quantity: qty(-5)},
		{Type: ledger.MovementAdjust, Quantity: qty(12)},
		{Type: ledger.MovementOut, Quantity: qty(62)},
	}
	for _, d := range steps {
		d.ProductID, d.WarehouseID = f.Product, f.Warehouse1
		_, err := f.Services.Ledger.Append(ctx, f.Actor, d)
		require.NoError(t, err)
	}

	var sum types.Quantity
	for _, m := range f.Movements(t, ledger.MovementFilter{}) {
		for _, leg := range m.Legs() {
			if leg.Key.String() == f.Key(f.Warehouse1).String() {
				sum = sum.Add(leg.Delta)
			}
		}
	}
	b := f.Balance(t, f.Warehouse1)
	assert.Equal(t, sum, b.Quantity)
	assert.Equal(t, qty(0), b.Quantity)
}

func TestAppend_OutWithoutStock(t *testing.T) {
	f := memtest.New(t)

	_, err := f.Services.Ledger.Append(context.Background(), f.Actor, ledger.Draft{
		Type: ledger.MovementOut, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(1),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	b, err := f.Store.Balances().Get(context.Background(), f.Key(f.Warehouse1))
	require.NoError(t, err)
	assert.Nil(t, b, "no balance row is materialized by a failed OUT")
	assert.Empty(t, f.Movements(t, ledger.MovementFilter{}))
}

func TestAppend_OutReportsAvailableAndRequested(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 10)

	_, err := f.Services.Ledger.Append(context.Background(), f.Actor, ledger.Draft{
		Type: ledger.MovementOut, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(20),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available: 10.0000, Requested: 20.0000")
	assert.Equal(t, qty(10), f.Balance(t, f.Warehouse1).Quantity)
}

func TestAppend_AdjustBelowZeroFails(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 100)

	_, err := f.Services.Ledger.Append(context.Background(), f.Actor, ledger.Draft{
		Type: ledger.MovementAdjust, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(-150),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidAdjustment))
	assert.Equal(t, qty(100), f.Balance(t, f.Warehouse1).Quantity)
}

func TestAppend_Transfer(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 50)
	f.Receive(t, f.Warehouse2, 10)

	m, err := f.Services.Ledger.Append(context.Background(), f.Actor, ledger.Draft{
		Type:                   ledger.MovementTransfer,
		ProductID:              f.Product,
		WarehouseID:            f.Warehouse1,
		DestinationWarehouseID: &f.Warehouse2,
		Quantity:               qty(20),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.MovementTransfer, m.Type)
	assert.Equal(t, qty(30), f.Balance(t, f.Warehouse1).Quantity)
	assert.Equal(t, qty(30), f.Balance(t, f.Warehouse2).Quantity)
}

func TestAppend_TransferToUnknownWarehouse(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 50)
	missing := id.New()

	_, err := f.Services.Ledger.Append(context.Background(), f.Actor, ledger.Draft{
		Type:                   ledger.MovementTransfer,
		ProductID:              f.Product,
		WarehouseID:            f.Warehouse1,
		DestinationWarehouseID: &missing,
		Quantity:               qty(20),
	})
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, qty(50), f.Balance(t, f.Warehouse1).Quantity)
}

func TestAppend_ConcurrentOutsSerialize(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 100)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.Services.Ledger.Append(context.Background(), f.Actor, ledger.Draft{
				Type: ledger.MovementOut, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(60),
			})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, qty(40), f.Balance(t, f.Warehouse1).Quantity)
}

func TestAppend_OtherTenantReferencesAreNotFound(t *testing.T) {
	f := memtest.New(t)
	stranger := actor.New(id.New(), "stranger")

	_, err := f.Services.Ledger.Append(context.Background(), stranger, ledger.Draft{
		Type: ledger.MovementIn, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(5),
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestAppend_RequiresTenant(t *testing.T) {
	f := memtest.New(t)

	_, err := f.Services.Ledger.Append(context.Background(), actor.Actor{}, ledger.Draft{
		Type: ledger.MovementIn, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(5),
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))
}

func TestAppend_WritesAuditAndOutbox(t *testing.T) {
	f := memtest.New(t)
	m := f.Receive(t, f.Warehouse1, 7)

	entries := f.Store.Audit().Entries(context.Background(), m.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCreate, entries[0].Action)
	assert.Equal(t, audit.EntityMovement, entries[0].EntityType)
	assert.Equal(t, "tester", entries[0].UserID)

	var found bool
	for _, msg := range f.Store.Outbox().Messages(context.Background()) {
		if msg.AggregateID == m.ID {
			found = true
			assert.Equal(t, outbox.EventMovementRecorded, msg.EventType)
		}
	}
	assert.True(t, found)
}

func TestAppendIdempotent(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	d := ledger.Draft{Type: ledger.MovementIn, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(5)}

	first, replayed, err := f.Services.Ledger.AppendIdempotent(ctx, f.Actor, "key-1", d)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := f.Services.Ledger.AppendIdempotent(ctx, f.Actor, "key-1", d)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, qty(5), f.Balance(t, f.Warehouse1).Quantity)
	assert.Len(t, f.Movements(t, ledger.MovementFilter{}), 1)

	d.Quantity = qty(6)
	_, _, err = f.Services.Ledger.AppendIdempotent(ctx, f.Actor, "key-1", d)
	assert.True(t, apperror.IsCode(err, apperror.CodeIdempotencyConflict))
	assert.Equal(t, qty(5), f.Balance(t, f.Warehouse1).Quantity)
}

func TestAppendIdempotent_FailureReleasesKey(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	d := ledger.Draft{Type: ledger.MovementOut, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(5)}

	_, _, err := f.Services.Ledger.AppendIdempotent(ctx, f.Actor, "key-2", d)
	require.Error(t, err)

	f.Receive(t, f.Warehouse1, 5)
	_, replayed, err := f.Services.Ledger.AppendIdempotent(ctx, f.Actor, "key-2", d)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, qty(0), f.Balance(t, f.Warehouse1).Quantity)
}

type recordingObserver struct {
	mu   sync.Mutex
	keys []ledger.StockKey
}

func (o *recordingObserver) BalancesChanged(_ context.Context, keys []ledger.StockKey) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keys = append(o.keys, keys...)
}

func TestAppend_NotifiesObserverOnlyAfterCommit(t *testing.T) {
	obs := &recordingObserver{}
	f := memtest.New(t, func(o *app.Options) { o.Observer = obs })

	f.Receive(t, f.Warehouse1, 3)
	require.Len(t, obs.keys, 1)
	assert.Equal(t, f.Key(f.Warehouse1).String(), obs.keys[0].String())

	_, err := f.Services.Ledger.Append(context.Background(), f.Actor, ledger.Draft{
		Type: ledger.MovementOut, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(4),
	})
	require.Error(t, err)
	assert.Len(t, obs.keys, 1)
}

func TestAppendFulfilment_Validation(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 10)
	out := ledger.Draft{Type: ledger.MovementOut, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(1)}

	_, err := f.Services.Ledger.AppendFulfilment(ctx, f.Actor, id.ID{}, out)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	in := out
	in.Type = ledger.MovementIn
	_, err = f.Services.Ledger.AppendFulfilment(ctx, f.Actor, id.New(), in)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	assert.Len(t, f.Movements(t, ledger.MovementFilter{}), 1)
	assert.Equal(t, qty(10), f.Balance(t, f.Warehouse1).Quantity)
}

func TestAppend_NeverLinksReservationOrDocument(t *testing.T) {
	f := memtest.New(t)
	d := ledger.Draft{Type: ledger.MovementIn, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(5)}
	docID := id.New()
	d.DocumentID = &docID

	m, err := f.Services.Ledger.Append(context.Background(), f.Actor, d)
	require.NoError(t, err)
	assert.Nil(t, m.ReservationID)
	assert.Equal(t, &docID, m.DocumentID)

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "documentId")
	assert.NotContains(t, string(raw), "reservationId")
}
