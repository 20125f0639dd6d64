package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ingest"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reservation"
	"stockledger/internal/infrastructure/storage/memory/memtest"
)

func level(f *memtest.Fixture, externalID string, qty int64) ingest.StockLevel {
	return ingest.StockLevel{
		TenantID:    f.Actor.TenantID,
		Source:      "sap",
		ExternalID:  externalID,
		ProductID:   f.Product,
		WarehouseID: f.Warehouse1,
		Quantity:    types.NewQuantity(qty),
		ObservedAt:  time.Now().UTC(),
	}
}

func reservationInput(f *memtest.Fixture, qty int64) reservation.CreateInput {
	return reservation.CreateInput{ProductID: f.Product, WarehouseID: f.Warehouse1, Quantity: types.NewQuantity(qty)}
}

func TestApply_AdjustsToTarget(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 40)

	m, err := f.Services.Ingest.Apply(ctx, level(f, "evt-1", 25))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, ledger.MovementAdjust, m.Type)
	assert.Equal(t, types.NewQuantity(-15), m.Quantity)
	assert.Equal(t, "worker:erp-sap", m.CreatedBy)
	assert.Equal(t, types.NewQuantity(25), f.Balance(t, f.Warehouse1).Quantity)

	m, err = f.Services.Ingest.Apply(ctx, level(f, "evt-2", 60))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(35), m.Quantity)
	assert.Equal(t, types.NewQuantity(60), f.Balance(t, f.Warehouse1).Quantity)
}

func TestApply_UntouchedKey(t *testing.T) {
	f := memtest.New(t)

	_, err := f.Services.Ingest.Apply(context.Background(), level(f, "evt-1", 12))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(12), f.Balance(t, f.Warehouse1).Quantity)
}

func TestApply_NoDeltaWritesNothing(t *testing.T) {
	f := memtest.New(t)
	f.Receive(t, f.Warehouse1, 10)

	m, err := f.Services.Ingest.Apply(context.Background(), level(f, "evt-1", 10))
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Len(t, f.Movements(t, ledger.MovementFilter{}), 1)
}

func TestApply_RedeliveryIsIgnored(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 10)

	// A redelivered message carries the same bytes, ObservedAt included.
	delivered := level(f, "evt-1", 4)

	first, err := f.Services.Ingest.Apply(ctx, delivered)
	require.NoError(t, err)
	require.NotNil(t, first)
	// Stock moves on between deliveries; the redelivered level must not reset it.
	f.Receive(t, f.Warehouse1, 3)

	m, err := f.Services.Ingest.Apply(ctx, delivered)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, types.NewQuantity(7), f.Balance(t, f.Warehouse1).Quantity)
	adjust := ledger.MovementAdjust
	assert.Len(t, f.Movements(t, ledger.MovementFilter{Type: &adjust}), 1)
}

func TestApply_ReusedIDWithOtherPayload(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()

	_, err := f.Services.Ingest.Apply(ctx, level(f, "evt-1", 4))
	require.NoError(t, err)

	_, err = f.Services.Ingest.Apply(ctx, level(f, "evt-1", 9))
	assert.True(t, apperror.IsCode(err, apperror.CodeIdempotencyConflict))
}

func TestApply_Invalid(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()

	l := level(f, "", 1)
	_, err := f.Services.Ingest.Apply(ctx, l)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	l = level(f, "evt-1", -1)
	_, err = f.Services.Ingest.Apply(ctx, l)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidQuantity))
}

func TestApply_BelowReservedFails(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 10)
	_, err := f.Services.Reservations.Reserve(ctx, f.Actor, reservationInput(f, 8))
	require.NoError(t, err)

	_, err = f.Services.Ingest.Apply(ctx, level(f, "evt-1", 5))
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidAdjustment))

	// The failed key is released and may be retried once the level is valid.
	_, err = f.Services.Ingest.Apply(ctx, level(f, "evt-2", 9))
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(9), f.Balance(t, f.Warehouse1).Quantity)
}
