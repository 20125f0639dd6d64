package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

func doc(t Type, lines ...Line) *Document {
	wh := id.New()
	d := &Document{ID: id.New(), Number: "X-1", Type: t, WarehouseID: &wh, Lines: lines}
	if t == TypeInventoryTransfer {
		dst := id.New()
		d.DestinationWarehouseID = &dst
	}
	return d
}

func line(n int64) Line {
	return Line{LineNo: 1, ProductID: id.New(), Quantity: types.NewQuantity(n)}
}

// Every type must be handled by Plan: either it emits movements or it is
// explicitly unsupported. A new type falling into the default branch fails here.
func TestPlan_HandlesEveryType(t *testing.T) {
	supported := map[Type]bool{
		TypeInventoryTransfer:   true,
		TypeInventoryAdjustment: true,
		TypeGoodsReceipt:        true,
		TypeGoodsIssue:          true,
	}
	for _, typ := range Types {
		t.Run(string(typ), func(t *testing.T) {
			drafts, err := Plan(doc(typ, line(3)))
			if supported[typ] {
				require.NoError(t, err)
				assert.NotEmpty(t, drafts)
				return
			}
			assert.True(t, apperror.IsCode(err, apperror.CodeUnsupportedDocType))
		})
	}

	_, err := Plan(doc("TELEPORT", line(1)))
	assert.True(t, apperror.IsCode(err, apperror.CodeUnsupportedDocType))
}

func TestPlan_Transfer(t *testing.T) {
	d := doc(TypeInventoryTransfer, line(20))
	drafts, err := Plan(d)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	out, in := drafts[0], drafts[1]
	assert.Equal(t, ledger.MovementOut, out.Type)
	assert.Equal(t, *d.WarehouseID, out.WarehouseID)
	assert.Equal(t, ledger.MovementIn, in.Type)
	assert.Equal(t, *d.DestinationWarehouseID, in.WarehouseID)
	for _, dr := range drafts {
		assert.Equal(t, types.NewQuantity(20), dr.Quantity)
		assert.Equal(t, d.ID, *dr.DocumentID)
		assert.Equal(t, "X-1", dr.Reference)
	}
}

func TestPlan_TransferToSameWarehouse(t *testing.T) {
	d := doc(TypeInventoryTransfer, line(1))
	d.DestinationWarehouseID = d.WarehouseID
	_, err := Plan(d)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestPlan_AdjustmentSign(t *testing.T) {
	drafts, err := Plan(doc(TypeInventoryAdjustment, line(5), line(-7)))
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, ledger.MovementIn, drafts[0].Type)
	assert.Equal(t, types.NewQuantity(5), drafts[0].Quantity)
	assert.Equal(t, ledger.MovementOut, drafts[1].Type)
	assert.Equal(t, types.NewQuantity(7), drafts[1].Quantity)
}

func TestPlan_LineWarehouseOverridesDocument(t *testing.T) {
	own := id.New()
	l := line(2)
	l.WarehouseID = &own
	drafts, err := Plan(doc(TypeGoodsReceipt, l))
	require.NoError(t, err)
	assert.Equal(t, own, drafts[0].WarehouseID)
}

func TestManualTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusPending))
	assert.True(t, CanTransition(StatusPending, StatusDraft))
	assert.True(t, CanTransition(StatusApproved, StatusCancelled))
	assert.False(t, CanTransition(StatusDraft, StatusApproved))
	assert.False(t, CanTransition(StatusDraft, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
	assert.False(t, CanTransition(StatusRejected, StatusDraft))
}

func TestInputValidate(t *testing.T) {
	wh := id.New()
	base := func() Input {
		return Input{
			Type:        TypeGoodsReceipt,
			WarehouseID: &wh,
			Lines:       []LineInput{{ProductID: id.New(), Quantity: types.NewQuantity(1)}},
		}
	}

	in := base()
	assert.NoError(t, in.Validate())

	in = base()
	in.Lines = nil
	assert.True(t, apperror.IsCode(in.Validate(), apperror.CodeValidation))

	in = base()
	in.Lines[0].Quantity = types.NewQuantity(-1)
	assert.True(t, apperror.IsCode(in.Validate(), apperror.CodeInvalidQuantity))

	in = base()
	in.Type = TypeInventoryAdjustment
	in.Lines[0].Quantity = types.NewQuantity(-1)
	assert.NoError(t, in.Validate())

	in = base()
	in.Type = TypeInventoryTransfer
	assert.True(t, apperror.IsCode(in.Validate(), apperror.CodeValidation), "transfer needs a destination")

	in = base()
	in.DestinationWarehouseID = &wh
	assert.True(t, apperror.IsCode(in.Validate(), apperror.CodeValidation), "destination only on transfers")

	in = base()
	in.WarehouseID = nil
	assert.True(t, apperror.IsCode(in.Validate(), apperror.CodeValidation))
}
