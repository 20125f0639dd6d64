package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/document"
)

func adjustment(qty int64) *document.Document {
	return &document.Document{
		ID:     id.New(),
		Type:   document.TypeInventoryAdjustment,
		Status: document.StatusDraft,
		Lines:  []document.Line{{ProductID: id.New(), Quantity: types.NewQuantity(qty)}},
	}
}

func TestApproval_DefaultAllowsEverything(t *testing.T) {
	p, err := NewApproval("")
	require.NoError(t, err)
	assert.Equal(t, AllowAll, p.Expression())
	assert.NoError(t, p.Approve(context.Background(), adjustment(-5000)))
}

func TestApproval_QuantityLimit(t *testing.T) {
	p, err := NewApproval(`doc.type != "INVENTORY_ADJUSTMENT" || doc.totalQuantity <= 1000.0`)
	require.NoError(t, err)

	assert.NoError(t, p.Approve(context.Background(), adjustment(-1000)))

	err = p.Approve(context.Background(), adjustment(1500))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeApprovalDenied))
}

func TestApproval_Metadata(t *testing.T) {
	p, err := NewApproval(`!("blocked" in doc.metadata)`)
	require.NoError(t, err)

	d := adjustment(1)
	assert.NoError(t, p.Approve(context.Background(), d))

	d.Metadata = map[string]string{"blocked": "yes"}
	assert.Error(t, p.Approve(context.Background(), d))
}

func TestNewApproval_RejectsInvalidRules(t *testing.T) {
	_, err := NewApproval(`doc.totalQuantity +`)
	assert.Error(t, err)

	_, err = NewApproval(`1 + 2`)
	assert.Error(t, err)
}
