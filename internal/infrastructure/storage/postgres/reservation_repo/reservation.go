// Package reservation_repo stores reservations in PostgreSQL.
package reservation_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/reservation"
	"stockledger/internal/infrastructure/storage/postgres"
)

const table = "stock_reservations"

// Repo implements reservation.Repository.
type Repo struct {
	txm  *postgres.TxManager
	cols []string
}

var _ reservation.Repository = (*Repo)(nil)

// New creates a reservation repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm, cols: postgres.ExtractDBColumns[reservation.Reservation]()}
}

func (r *Repo) Create(ctx context.Context, res *reservation.Reservation) error {
	return postgres.Insert(ctx, r.txm.GetQuerier(ctx), table, r.cols, res)
}

func (r *Repo) byID(tenantID, reservationID id.ID) squirrel.SelectBuilder {
	return postgres.Builder().Select(r.cols...).From(table).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": reservationID})
}

func (r *Repo) get(ctx context.Context, q postgres.Querier, sel squirrel.SelectBuilder, reservationID id.ID) (*reservation.Reservation, error) {
	var res reservation.Reservation
	found, err := postgres.GetOne(ctx, q, &res, sel)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if !found {
		return nil, apperror.NewNotFound("reservation", reservationID.String())
	}
	return &res, nil
}

func (r *Repo) Get(ctx context.Context, tenantID, reservationID id.ID) (*reservation.Reservation, error) {
	return r.get(ctx, r.txm.GetQuerier(ctx), r.byID(tenantID, reservationID), reservationID)
}

func (r *Repo) GetForUpdate(ctx context.Context, tenantID, reservationID id.ID) (*reservation.Reservation, error) {
	t, err := r.txm.RequireTx(ctx, "lock reservation")
	if err != nil {
		return nil, err
	}
	return r.get(ctx, t.Tx, r.byID(tenantID, reservationID).Suffix("FOR UPDATE"), reservationID)
}

func (r *Repo) Update(ctx context.Context, res *reservation.Reservation) error {
	sql, args, err := postgres.Builder().Update(table).
		Set("reserved_quantity", res.ReservedQuantity).
		Set("fulfilled_quantity", res.FulfilledQuantity).
		Set("status", res.Status).
		Set("expires_at", res.ExpiresAt).
		Set("notes", res.Notes).
		Set("cancel_reason", res.CancelReason).
		Set("updated_at", res.UpdatedAt).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"tenant_id": res.TenantID, "id": res.ID, "version": res.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", res.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("reservation", res.ID)
	}
	res.Version++
	return nil
}

func (r *Repo) List(ctx context.Context, tenantID id.ID, f reservation.ListFilter) ([]reservation.Reservation, int64, error) {
	return postgres.SelectPage[reservation.Reservation](ctx, r.txm.GetQuerier(ctx), r.listQuery(tenantID, f), f.Page,
		"created_at DESC", "id DESC")
}

func (r *Repo) listQuery(tenantID id.ID, f reservation.ListFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(r.cols...).From(table).
		Where(squirrel.Eq{"tenant_id": tenantID})
	q = postgres.EqOptional(q, "product_id", f.ProductID)
	q = postgres.EqOptional(q, "warehouse_id", f.WarehouseID)
	q = postgres.EqOptional(q, "location_id", f.LocationID)
	q = postgres.EqOptional(q, "status", f.Status)
	if f.ReferenceID != "" {
		q = q.Where(squirrel.Eq{"reference_id": f.ReferenceID})
	}
	return q
}

// ListExpired uses the partial index on open reservations with an expiry.
func (r *Repo) ListExpired(ctx context.Context, tenantID id.ID, now time.Time, limit int) ([]id.ID, error) {
	q := r.expiredQuery(tenantID, now)
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	defer rows.Close()

	var ids []id.ID
	for rows.Next() {
		var v id.ID
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan reservation id: %w", err)
		}
		ids = append(ids, v)
	}
	return ids, rows.Err()
}

func (r *Repo) expiredQuery(tenantID id.ID, now time.Time) squirrel.SelectBuilder {
	return postgres.Builder().Select("id").From(table).
		Where(squirrel.Eq{
			"tenant_id": tenantID,
			"status":    []reservation.Status{reservation.StatusPending, reservation.StatusConfirmed},
		}).
		Where(squirrel.NotEq{"expires_at": nil}).
		Where(squirrel.Lt{"expires_at": now}).
		OrderBy("expires_at", "id")
}
