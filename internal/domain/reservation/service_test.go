package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reservation"
	"stockledger/internal/infrastructure/storage/memory/memtest"
)

func qty(n int64) types.Quantity { return types.NewQuantity(n) }

func reserve(t *testing.T, f *memtest.Fixture, n int64) *reservation.Reservation {
	t.Helper()
	r, err := f.Services.Reservations.Reserve(context.Background(), f.Actor, reservation.CreateInput{
		ProductID:   f.Product,
		WarehouseID: f.Warehouse1,
		Quantity:    qty(n),
		ReferenceID: "ORDER-1",
	})
	require.NoError(t, err)
	return r
}

func TestReserve(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 100)

	r := reserve(t, f, 30)
	assert.Equal(t, reservation.StatusPending, r.Status)
	assert.Equal(t, reservation.TypeOrder, r.Type)
	assert.Equal(t, reservation.DefaultPriority, r.Priority)
	assert.Equal(t, qty(30), r.ReservedQuantity)

	b := f.Balance(t, f.Warehouse1)
	assert.Equal(t, qty(100), b.Quantity)
	assert.Equal(t, qty(30), b.ReservedQuantity)
	assert.Equal(t, qty(70), b.Available())
}

func TestReserve_MoreThanAvailableChangesNothing(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 100)
	reserve(t, f, 80)
	before := f.Balance(t, f.Warehouse1)

	_, err := f.Services.Reservations.Reserve(context.Background(), f.Actor, reservation.CreateInput{
		ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(21),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, before, f.Balance(t, f.Warehouse1))

	list, err := f.Services.Reservations.List(context.Background(), f.Actor, reservation.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)
}

func TestReserve_WithoutBalanceRow(t *testing.T) {
	f := memtest.New(t)

	_, err := f.Services.Reservations.Reserve(context.Background(), f.Actor, reservation.CreateInput{
		ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(1),
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
}

func TestReserve_RejectsBadInput(t *testing.T) {
	f := memtest.New(t)
	past := time.Now().Add(-time.Minute)

	_, err := f.Services.Reservations.Reserve(context.Background(), f.Actor, reservation.CreateInput{
		ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(0),
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidQuantity))

	_, err = f.Services.Reservations.Reserve(context.Background(), f.Actor, reservation.CreateInput{
		ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(1), ExpiresAt: &past,
	})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestScenario_ReserveThenFulfill(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 100)

	r := reserve(t, f, 30)
	assert.Equal(t, qty(70), f.Balance(t, f.Warehouse1).Available())

	_, err := f.Services.Reservations.Confirm(ctx, f.Actor, r.ID)
	require.NoError(t, err)

	r, err = f.Services.Reservations.Fulfill(ctx, f.Actor, r.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusFulfilled, r.Status)
	assert.Equal(t, qty(0), r.ReservedQuantity)
	assert.Equal(t, qty(30), r.FulfilledQuantity)

	b := f.Balance(t, f.Warehouse1)
	assert.Equal(t, qty(70), b.Quantity)
	assert.Equal(t, qty(0), b.ReservedQuantity)

	moves := f.Movements(t, ledger.MovementFilter{ReservationID: &r.ID})
	require.Len(t, moves, 1)
	assert.Equal(t, ledger.MovementOut, moves[0].Type)
	assert.Equal(t, qty(30), moves[0].Quantity)
}

func TestFulfill_Partial(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 50)
	r := reserve(t, f, 20)
	_, err := f.Services.Reservations.Confirm(ctx, f.Actor, r.ID)
	require.NoError(t, err)

	part := qty(8)
	r, err = f.Services.Reservations.Fulfill(ctx, f.Actor, r.ID, &part)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, r.Status)
	assert.Equal(t, qty(12), r.ReservedQuantity)
	assert.Equal(t, qty(8), r.FulfilledQuantity)
	assert.Equal(t, r.Quantity, r.ReservedQuantity.Add(r.FulfilledQuantity))

	b := f.Balance(t, f.Warehouse1)
	assert.Equal(t, qty(42), b.Quantity)
	assert.Equal(t, qty(12), b.ReservedQuantity)

	over := qty(13)
	_, err = f.Services.Reservations.Fulfill(ctx, f.Actor, r.ID, &over)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidQuantity))
	assert.Contains(t, err.Error(), "Only 12.0000 units remaining")

	r, err = f.Services.Reservations.Fulfill(ctx, f.Actor, r.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusFulfilled, r.Status)
	assert.Equal(t, qty(30), f.Balance(t, f.Warehouse1).Quantity)
}

func TestFulfill_RequiresConfirmed(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 10)
	r := reserve(t, f, 5)

	_, err := f.Services.Reservations.Fulfill(context.Background(), f.Actor, r.ID, nil)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))
	assert.Equal(t, qty(10), f.Balance(t, f.Warehouse1).Quantity)
}

func TestConfirm_OnlyFromPending(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 10)
	r := reserve(t, f, 5)

	_, err := f.Services.Reservations.Confirm(ctx, f.Actor, r.ID)
	require.NoError(t, err)
	_, err = f.Services.Reservations.Confirm(ctx, f.Actor, r.ID)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))
}

func TestCancel_ReleasesExactlyRemaining(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 20)
	r := reserve(t, f, 5)
	_, err := f.Services.Reservations.Confirm(ctx, f.Actor, r.ID)
	require.NoError(t, err)
	before := f.Balance(t, f.Warehouse1)

	r, err = f.Services.Reservations.Cancel(ctx, f.Actor, r.ID, "")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, r.Status)
	assert.Equal(t, reservation.DefaultCancelReason, r.CancelReason)

	after := f.Balance(t, f.Warehouse1)
	assert.Equal(t, before.Available().Add(qty(5)), after.Available())
	assert.Equal(t, before.Quantity, after.Quantity)

	entries := f.Store.Audit().Entries(ctx, r.ID)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, audit.ActionCancel, last.Action)
	assert.Equal(t, "CONFIRMED", last.Metadata["from_status"])
	assert.Equal(t, "CANCELLED", last.Metadata["to_status"])

	_, err = f.Services.Reservations.Cancel(ctx, f.Actor, r.ID, "again")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidStateTransition))
}

func TestExpire(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 20)

	soon := time.Now().Add(50 * time.Millisecond)
	r, err := f.Services.Reservations.Reserve(ctx, f.Actor, reservation.CreateInput{
		ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(6), ExpiresAt: &soon,
	})
	require.NoError(t, err)

	ok, err := f.Services.Reservations.Expire(ctx, f.Actor, r.ID)
	require.NoError(t, err)
	assert.False(t, ok, "not due yet")

	time.Sleep(80 * time.Millisecond)
	n, err := f.Services.Reservations.ExpireDue(ctx, f.Actor.TenantID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.Services.Reservations.Get(ctx, f.Actor, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusExpired, got.Status)
	assert.Equal(t, qty(0), f.Balance(t, f.Warehouse1).ReservedQuantity)

	ok, err = f.Services.Reservations.Expire(ctx, f.Actor, r.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, qty(0), f.Balance(t, f.Warehouse1).ReservedQuantity)
}

func TestReservedEqualsOpenReservations(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 100)

	a := reserve(t, f, 10)
	b := reserve(t, f, 20)
	reserve(t, f, 30)
	_, err := f.Services.Reservations.Cancel(ctx, f.Actor, a.ID, "")
	require.NoError(t, err)
	_, err = f.Services.Reservations.Confirm(ctx, f.Actor, b.ID)
	require.NoError(t, err)
	part := qty(5)
	_, err = f.Services.Reservations.Fulfill(ctx, f.Actor, b.ID, &part)
	require.NoError(t, err)

	list, err := f.Services.Reservations.List(ctx, f.Actor, reservation.ListFilter{})
	require.NoError(t, err)
	var open types.Quantity
	for _, r := range list.Items {
		if r.Status.IsOpen() {
			open = open.Add(r.ReservedQuantity)
		}
	}
	bal := f.Balance(t, f.Warehouse1)
	assert.Equal(t, open, bal.ReservedQuantity)
	assert.Equal(t, qty(45), bal.ReservedQuantity)
	assert.Equal(t, qty(95), bal.Quantity)
}

func TestReserveIdempotent(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 10)
	in := reservation.CreateInput{ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(4)}

	first, replayed, err := f.Services.Reservations.ReserveIdempotent(ctx, f.Actor, "r-1", in)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := f.Services.Reservations.ReserveIdempotent(ctx, f.Actor, "r-1", in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, qty(4), f.Balance(t, f.Warehouse1).ReservedQuantity)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, reservation.CanTransition(reservation.StatusPending, reservation.StatusConfirmed))
	assert.True(t, reservation.CanTransition(reservation.StatusConfirmed, reservation.StatusFulfilled))
	assert.False(t, reservation.CanTransition(reservation.StatusPending, reservation.StatusFulfilled))
	for _, terminal := range []reservation.Status{
		reservation.StatusFulfilled, reservation.StatusCancelled, reservation.StatusExpired,
	} {
		assert.False(t, terminal.IsOpen())
		assert.False(t, reservation.CanTransition(terminal, reservation.StatusCancelled))
	}
}

func TestFulfill_HoldSurvivesPlainOutMovements(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 100)

	r := reserve(t, f, 30)
	_, err := f.Services.Reservations.Confirm(ctx, f.Actor, r.ID)
	require.NoError(t, err)

	// Draining every available unit must not eat into the hold.
	_, err = f.Services.Ledger.Append(ctx, f.Actor, ledger.Draft{
		Type: ledger.MovementOut, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(70),
	})
	require.NoError(t, err)
	_, err = f.Services.Ledger.Append(ctx, f.Actor, ledger.Draft{
		Type: ledger.MovementOut, ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: qty(1),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	b := f.Balance(t, f.Warehouse1)
	assert.Equal(t, qty(30), b.Quantity)
	assert.Equal(t, qty(30), b.ReservedQuantity)

	r, err = f.Services.Reservations.Fulfill(ctx, f.Actor, r.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusFulfilled, r.Status)

	b = f.Balance(t, f.Warehouse1)
	assert.True(t, b.Quantity.IsZero())
	assert.True(t, b.ReservedQuantity.IsZero())

	rid := r.ID
	moves := f.Movements(t, ledger.MovementFilter{ReservationID: &rid})
	require.Len(t, moves, 1)
	assert.Equal(t, qty(30), moves[0].Quantity)
}
