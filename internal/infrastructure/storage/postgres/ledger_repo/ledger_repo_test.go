package ledger_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

func TestKeyWhere_AbsentPartsMatchNull(t *testing.T) {
	loc := id.New()
	key := ledger.StockKey{TenantID: id.New(), ProductID: id.New(), WarehouseID: id.New(), LocationID: &loc}

	sql, args, err := keyWhere(key).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"(tenant_id = ? AND product_id = ? AND variant_id IS NULL AND warehouse_id = ? AND location_id = ? AND batch_id IS NULL AND series_id IS NULL)",
		sql)
	// uuid values are bound through driver.Valuer.
	assert.Equal(t, []any{key.TenantID.String(), key.ProductID.String(), key.WarehouseID.String(), loc.String()}, args)
}

func TestBalanceLock_UsesForUpdate(t *testing.T) {
	r := NewBalanceRepo(nil)
	sql, _, err := r.selectKey(ledger.StockKey{}).Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM stock_balances WHERE (tenant_id = $1")
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestMovementListQuery(t *testing.T) {
	r := NewMovementRepo(nil)
	wh, doc := id.New(), id.New()
	out := ledger.MovementOut

	sql, args, err := r.listQuery(id.New(), ledger.MovementFilter{WarehouseID: &wh, Type: &out, DocumentID: &doc}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE tenant_id = $1 AND (warehouse_id = $2 OR destination_warehouse_id = $3) AND type = $4 AND document_id = $5")
	assert.Len(t, args, 5)
}

func TestBalanceListQuery_ExcludeZero(t *testing.T) {
	r := NewBalanceRepo(nil)
	sql, _, err := r.listQuery(id.New(), ledger.BalanceFilter{ExcludeZero: true}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "(quantity <> $2 OR reserved_quantity <> $3)")
}
