package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

func TestDraftValidate(t *testing.T) {
	product, wh, other := id.New(), id.New(), id.New()

	tests := []struct {
		name string
		d    Draft
		code string
	}{
		{"in ok", Draft{Type: MovementIn, ProductID: product, WarehouseID: wh, Quantity: types.NewQuantity(1)}, ""},
		{"zero in", Draft{Type: MovementIn, ProductID: product, WarehouseID: wh}, apperror.CodeInvalidQuantity},
		{"negative out", Draft{Type: MovementOut, ProductID: product, WarehouseID: wh, Quantity: types.NewQuantity(-1)}, apperror.CodeInvalidQuantity},
		{"zero adjust", Draft{Type: MovementAdjust, ProductID: product, WarehouseID: wh}, apperror.CodeInvalidQuantity},
		{"negative adjust ok", Draft{Type: MovementAdjust, ProductID: product, WarehouseID: wh, Quantity: types.NewQuantity(-3)}, ""},
		{"unknown type", Draft{Type: "MOVE", ProductID: product, WarehouseID: wh, Quantity: types.NewQuantity(1)}, apperror.CodeValidation},
		{"transfer without destination", Draft{Type: MovementTransfer, ProductID: product, WarehouseID: wh, Quantity: types.NewQuantity(1)}, apperror.CodeValidation},
		{"transfer to itself", Draft{Type: MovementTransfer, ProductID: product, WarehouseID: wh, DestinationWarehouseID: &wh, Quantity: types.NewQuantity(1)}, apperror.CodeValidation},
		{"transfer ok", Draft{Type: MovementTransfer, ProductID: product, WarehouseID: wh, DestinationWarehouseID: &other, Quantity: types.NewQuantity(1)}, ""},
		{"destination on IN", Draft{Type: MovementIn, ProductID: product, WarehouseID: wh, DestinationWarehouseID: &other, Quantity: types.NewQuantity(1)}, apperror.CodeValidation},
		{"missing product", Draft{Type: MovementIn, WarehouseID: wh, Quantity: types.NewQuantity(1)}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperror.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestMovementLegs(t *testing.T) {
	tenant, product, w1, w2 := id.New(), id.New(), id.New(), id.New()
	ten := types.NewQuantity(10)

	m := Movement{TenantID: tenant, ProductID: product, WarehouseID: w1, Quantity: ten}

	m.Type = MovementIn
	assert.Equal(t, []types.Quantity{ten}, deltas(m.Legs()))

	m.Type = MovementOut
	assert.Equal(t, []types.Quantity{-ten}, deltas(m.Legs()))

	m.Type = MovementAdjust
	m.Quantity = -ten
	assert.Equal(t, []types.Quantity{-ten}, deltas(m.Legs()))

	m.Type = MovementTransfer
	m.Quantity = ten
	m.DestinationWarehouseID = &w2
	legs := m.Legs()
	require.Len(t, legs, 2)
	assert.Equal(t, w1, legs[0].Key.WarehouseID)
	assert.Equal(t, -ten, legs[0].Delta)
	assert.Equal(t, w2, legs[1].Key.WarehouseID)
	assert.Equal(t, ten, legs[1].Delta)
}

func deltas(legs []Leg) []types.Quantity {
	out := make([]types.Quantity, len(legs))
	for i, l := range legs {
		out[i] = l.Delta
	}
	return out
}

func TestStockKeyString(t *testing.T) {
	k := StockKey{TenantID: id.New(), ProductID: id.New(), WarehouseID: id.New()}
	assert.Contains(t, k.String(), "/-/")

	loc := id.New()
	k2 := k
	k2.LocationID = &loc
	assert.NotEqual(t, k.String(), k2.String())
}

func TestBalanceAvailable(t *testing.T) {
	b := Balance{Quantity: types.NewQuantity(100), ReservedQuantity: types.NewQuantity(30)}
	assert.Equal(t, types.NewQuantity(70), b.Available())
	assert.NoError(t, b.check())

	b.ReservedQuantity = types.NewQuantity(101)
	assert.Error(t, b.check())
}
