// Package ledger_repo stores the movement log and projected balances in PostgreSQL.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const movementsTable = "stock_movements"

// MovementRepo implements ledger.MovementRepository. The table has no UPDATE or
// DELETE grants for the application role.
type MovementRepo struct {
	txm  *postgres.TxManager
	cols []string
}

var _ ledger.MovementRepository = (*MovementRepo)(nil)

// NewMovementRepo creates a movement repository.
func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{txm: txm, cols: postgres.ExtractDBColumns[ledger.Movement]()}
}

func (r *MovementRepo) Create(ctx context.Context, m *ledger.Movement) error {
	return postgres.Insert(ctx, r.txm.GetQuerier(ctx), movementsTable, r.cols, m)
}

func (r *MovementRepo) Get(ctx context.Context, tenantID, movementID id.ID) (*ledger.Movement, error) {
	q := postgres.Builder().Select(r.cols...).From(movementsTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": movementID})

	var m ledger.Movement
	found, err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &m, q)
	if err != nil {
		return nil, fmt.Errorf("get movement: %w", err)
	}
	if !found {
		return nil, apperror.NewNotFound("movement", movementID.String())
	}
	return &m, nil
}

// List returns movements newest first. A warehouse filter also matches the
// destination of transfers.
func (r *MovementRepo) List(ctx context.Context, tenantID id.ID, f ledger.MovementFilter) ([]ledger.Movement, int64, error) {
	return postgres.SelectPage[ledger.Movement](ctx, r.txm.GetQuerier(ctx), r.listQuery(tenantID, f), f.Page,
		"created_at DESC", "id DESC")
}

func (r *MovementRepo) listQuery(tenantID id.ID, f ledger.MovementFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(r.cols...).From(movementsTable).
		Where(squirrel.Eq{"tenant_id": tenantID})
	q = postgres.EqOptional(q, "product_id", f.ProductID)
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"warehouse_id": *f.WarehouseID},
			squirrel.Eq{"destination_warehouse_id": *f.WarehouseID},
		})
	}
	q = postgres.EqOptional(q, "type", f.Type)
	q = postgres.EqOptional(q, "document_id", f.DocumentID)
	q = postgres.EqOptional(q, "reservation_id", f.ReservationID)
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *f.To})
	}
	return q
}
