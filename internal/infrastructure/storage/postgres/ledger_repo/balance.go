package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const balancesTable = "stock_balances"

// BalanceRepo implements ledger.BalanceRepository. Rows are unique per stock key
// (NULLS NOT DISTINCT) and locked with SELECT ... FOR UPDATE.
type BalanceRepo struct {
	txm  *postgres.TxManager
	cols []string
}

var _ ledger.BalanceRepository = (*BalanceRepo)(nil)

// NewBalanceRepo creates a balance repository.
func NewBalanceRepo(txm *postgres.TxManager) *BalanceRepo {
	return &BalanceRepo{txm: txm, cols: postgres.ExtractDBColumns[ledger.Balance]()}
}

// keyWhere matches exactly one stock key; absent parts match NULL.
func keyWhere(k ledger.StockKey) squirrel.And {
	opt := func(col string, v *id.ID) squirrel.Sqlizer {
		if v == nil {
			return squirrel.Eq{col: nil}
		}
		return squirrel.Eq{col: *v}
	}
	return squirrel.And{
		squirrel.Eq{"tenant_id": k.TenantID},
		squirrel.Eq{"product_id": k.ProductID},
		opt("variant_id", k.VariantID),
		squirrel.Eq{"warehouse_id": k.WarehouseID},
		opt("location_id", k.LocationID),
		opt("batch_id", k.BatchID),
		opt("series_id", k.SeriesID),
	}
}

func (r *BalanceRepo) selectKey(k ledger.StockKey) squirrel.SelectBuilder {
	return postgres.Builder().Select(r.cols...).From(balancesTable).Where(keyWhere(k))
}

func (r *BalanceRepo) Lock(ctx context.Context, key ledger.StockKey) (*ledger.Balance, error) {
	t, err := r.txm.RequireTx(ctx, "lock balance")
	if err != nil {
		return nil, err
	}
	var b ledger.Balance
	found, err := postgres.GetOne(ctx, t.Tx, &b, r.selectKey(key).Suffix("FOR UPDATE"))
	if err != nil {
		return nil, fmt.Errorf("lock balance %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	return &b, nil
}

// LockOrCreate inserts a zero row if absent; a concurrent insert of the same key
// waits on the unique index, then both lock the single row.
func (r *BalanceRepo) LockOrCreate(ctx context.Context, key ledger.StockKey) (*ledger.Balance, error) {
	t, err := r.txm.RequireTx(ctx, "lock balance")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = t.Exec(ctx, `
		INSERT INTO stock_balances (
			id, tenant_id, product_id, variant_id, warehouse_id, location_id, batch_id, series_id,
			quantity, reserved_quantity, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 1, $9, $9)
		ON CONFLICT ON CONSTRAINT stock_balances_key DO NOTHING
	`, id.New(), key.TenantID, key.ProductID, key.VariantID, key.WarehouseID,
		key.LocationID, key.BatchID, key.SeriesID, now)
	if err != nil {
		return nil, fmt.Errorf("materialize balance %s: %w", key, err)
	}

	b, err := r.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("materialize balance %s: row missing after insert", key)
	}
	return b, nil
}

func (r *BalanceRepo) Save(ctx context.Context, b *ledger.Balance) error {
	sql, args, err := postgres.Builder().Update(balancesTable).
		Set("quantity", b.Quantity).
		Set("reserved_quantity", b.ReservedQuantity).
		Set("last_movement_at", b.LastMovementAt).
		Set("updated_at", b.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": b.ID, "version": b.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsCheckViolation(err) {
			return apperror.NewInvalidAdjustment(b.Quantity, b.ReservedQuantity).WithCause(err)
		}
		return fmt.Errorf("save balance %s: %w", b.StockKey, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("balance", b.ID)
	}
	b.Version++
	return nil
}

func (r *BalanceRepo) Get(ctx context.Context, key ledger.StockKey) (*ledger.Balance, error) {
	var b ledger.Balance
	found, err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &b, r.selectKey(key))
	if err != nil {
		return nil, fmt.Errorf("get balance %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	return &b, nil
}

func (r *BalanceRepo) List(ctx context.Context, tenantID id.ID, f ledger.BalanceFilter) ([]ledger.Balance, int64, error) {
	return postgres.SelectPage[ledger.Balance](ctx, r.txm.GetQuerier(ctx), r.listQuery(tenantID, f), f.Page,
		"updated_at DESC", "id")
}

func (r *BalanceRepo) listQuery(tenantID id.ID, f ledger.BalanceFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(r.cols...).From(balancesTable).
		Where(squirrel.Eq{"tenant_id": tenantID})
	q = postgres.EqOptional(q, "product_id", f.ProductID)
	q = postgres.EqOptional(q, "variant_id", f.VariantID)
	q = postgres.EqOptional(q, "warehouse_id", f.WarehouseID)
	q = postgres.EqOptional(q, "location_id", f.LocationID)
	if f.ExcludeZero {
		q = q.Where(squirrel.Or{
			squirrel.NotEq{"quantity": int64(0)},
			squirrel.NotEq{"reserved_quantity": int64(0)},
		})
	}
	return q
}

func (r *BalanceRepo) Summary(ctx context.Context, tenantID, productID id.ID, warehouseID *id.ID) (ledger.Summary, error) {
	q := postgres.Builder().
		Select("COALESCE(SUM(quantity), 0)", "COALESCE(SUM(reserved_quantity), 0)", "COUNT(*)").
		From(balancesTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "product_id": productID})
	q = postgres.EqOptional(q, "warehouse_id", warehouseID)

	sql, args, err := q.ToSql()
	if err != nil {
		return ledger.Summary{}, fmt.Errorf("build query: %w", err)
	}

	var onHand, reserved int64
	sum := ledger.Summary{ProductID: productID, WarehouseID: id.Clone(warehouseID)}
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&onHand, &reserved, &sum.Keys); err != nil {
		return ledger.Summary{}, fmt.Errorf("summarize balances: %w", err)
	}
	sum.OnHand = types.Quantity(onHand)
	sum.Reserved = types.Quantity(reserved)
	sum.Available = sum.OnHand.Sub(sum.Reserved)
	return sum, nil
}
