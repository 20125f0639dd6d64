package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

func TestExtractDBColumns_FlattensStockKey(t *testing.T) {
	cols := ExtractDBColumns[ledger.Balance]()

	for _, c := range []string{
		"id", "tenant_id", "product_id", "variant_id", "warehouse_id", "location_id",
		"batch_id", "series_id", "quantity", "reserved_quantity", "version",
	} {
		assert.Contains(t, cols, c)
	}
	assert.NotContains(t, cols, "StockKey")
}

func TestStructToMap(t *testing.T) {
	wh := id.New()
	b := ledger.Balance{
		ID:       id.New(),
		StockKey: ledger.StockKey{TenantID: id.New(), ProductID: id.New(), WarehouseID: wh},
		Quantity: types.NewQuantity(3),
		Version:  2,
	}

	m := StructToMap(&b)
	assert.Equal(t, b.ID, m["id"])
	assert.Equal(t, wh, m["warehouse_id"])
	assert.Equal(t, types.NewQuantity(3), m["quantity"])
	assert.Equal(t, int64(2), m["version"])
	assert.Equal(t, (*id.ID)(nil), m["location_id"])
}

func TestRows(t *testing.T) {
	items := []ledger.StockKey{{ProductID: id.New()}, {ProductID: id.New()}}
	rows := Rows(items, []string{"product_id", "batch_id"})

	require.Len(t, rows, 2)
	assert.Equal(t, items[1].ProductID, rows[1][0])
	assert.Equal(t, (*id.ID)(nil), rows[1][1])
}
