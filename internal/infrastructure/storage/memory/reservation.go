package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/reservation"
)

// ReservationRepo implements reservation.Repository.
type ReservationRepo struct{ s *Store }

// Reservations returns the reservation repository.
func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{s: s} }

var _ reservation.Repository = (*ReservationRepo)(nil)

func (r *ReservationRepo) Create(ctx context.Context, res *reservation.Reservation) error {
	return r.s.write(ctx, func(d *state) error {
		d.reservations[res.ID] = *res
		return nil
	})
}

func (r *ReservationRepo) Get(ctx context.Context, tenantID, reservationID id.ID) (*reservation.Reservation, error) {
	var out *reservation.Reservation
	r.s.read(ctx, func(d *state) {
		if res, ok := d.reservations[reservationID]; ok && res.TenantID == tenantID {
			out = &res
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("reservation", reservationID.String())
	}
	return out, nil
}

func (r *ReservationRepo) GetForUpdate(ctx context.Context, tenantID, reservationID id.ID) (*reservation.Reservation, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("lock reservation %s: no transaction", reservationID)
	}
	return r.Get(ctx, tenantID, reservationID)
}

func (r *ReservationRepo) Update(ctx context.Context, res *reservation.Reservation) error {
	return r.s.write(ctx, func(d *state) error {
		cur, ok := d.reservations[res.ID]
		if !ok || cur.TenantID != res.TenantID {
			return apperror.NewNotFound("reservation", res.ID.String())
		}
		if cur.Version != res.Version {
			return apperror.NewConcurrentModification("reservation", res.ID)
		}
		res.Version++
		d.reservations[res.ID] = *res
		return nil
	})
}

func (r *ReservationRepo) List(ctx context.Context, tenantID id.ID, f reservation.ListFilter) ([]reservation.Reservation, int64, error) {
	var items []reservation.Reservation
	r.s.read(ctx, func(d *state) {
		for _, res := range d.reservations {
			switch {
			case res.TenantID != tenantID:
			case f.ProductID != nil && res.ProductID != *f.ProductID:
			case f.WarehouseID != nil && res.WarehouseID != *f.WarehouseID:
			case f.LocationID != nil && !id.Equal(res.LocationID, f.LocationID):
			case f.Status != nil && res.Status != *f.Status:
			case f.ReferenceID != "" && res.ReferenceID != f.ReferenceID:
			default:
				items = append(items, res)
			}
		}
	})
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID.String() > items[j].ID.String()
	})
	lo, hi := window(len(items), f.Limit, f.Offset)
	return items[lo:hi], int64(len(items)), nil
}

func (r *ReservationRepo) ListExpired(ctx context.Context, tenantID id.ID, now time.Time, limit int) ([]id.ID, error) {
	var due []reservation.Reservation
	r.s.read(ctx, func(d *state) {
		for _, res := range d.reservations {
			if res.TenantID == tenantID && res.IsExpired(now) {
				due = append(due, res)
			}
		}
	})
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(*due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]id.ID, len(due))
	for i, res := range due {
		ids[i] = res.ID
	}
	return ids, nil
}
