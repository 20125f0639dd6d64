package memory

import (
	"context"
	"fmt"
	"sort"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/ledger"
)

// MovementRepo implements ledger.MovementRepository.
type MovementRepo struct{ s *Store }

// Movements returns the movement repository.
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }

var _ ledger.MovementRepository = (*MovementRepo)(nil)

func (r *MovementRepo) Create(ctx context.Context, m *ledger.Movement) error {
	return r.s.write(ctx, func(d *state) error {
		d.movements = append(d.movements, *m)
		return nil
	})
}

func (r *MovementRepo) Get(ctx context.Context, tenantID, movementID id.ID) (*ledger.Movement, error) {
	var out *ledger.Movement
	r.s.read(ctx, func(d *state) {
		for _, m := range d.movements {
			if m.ID == movementID && m.TenantID == tenantID {
				out = &m
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("movement", movementID.String())
	}
	return out, nil
}

func (r *MovementRepo) List(ctx context.Context, tenantID id.ID, f ledger.MovementFilter) ([]ledger.Movement, int64, error) {
	var items []ledger.Movement
	r.s.read(ctx, func(d *state) {
		for _, m := range d.movements {
			if matchMovement(m, tenantID, f) {
				items = append(items, m)
			}
		}
	})
	// Newest first; the log is append-ordered.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	lo, hi := window(len(items), f.Limit, f.Offset)
	return items[lo:hi], int64(len(items)), nil
}

func matchMovement(m ledger.Movement, tenantID id.ID, f ledger.MovementFilter) bool {
	switch {
	case m.TenantID != tenantID:
		return false
	case f.ProductID != nil && m.ProductID != *f.ProductID:
		return false
	case f.WarehouseID != nil && m.WarehouseID != *f.WarehouseID &&
		(m.DestinationWarehouseID == nil || *m.DestinationWarehouseID != *f.WarehouseID):
		return false
	case f.Type != nil && m.Type != *f.Type:
		return false
	case f.DocumentID != nil && !id.Equal(m.DocumentID, f.DocumentID):
		return false
	case f.ReservationID != nil && !id.Equal(m.ReservationID, f.ReservationID):
		return false
	case f.From != nil && m.CreatedAt.Before(*f.From):
		return false
	case f.To != nil && m.CreatedAt.After(*f.To):
		return false
	}
	return true
}

// BalanceRepo implements ledger.BalanceRepository. Locking is provided by the
// store-wide transaction lock.
type BalanceRepo struct{ s *Store }

// Balances returns the balance repository.
func (s *Store) Balances() *BalanceRepo { return &BalanceRepo{s: s} }

var _ ledger.BalanceRepository = (*BalanceRepo)(nil)

func (r *BalanceRepo) Lock(ctx context.Context, key ledger.StockKey) (*ledger.Balance, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("lock balance %s: no transaction", key)
	}
	return r.Get(ctx, key)
}

func (r *BalanceRepo) LockOrCreate(ctx context.Context, key ledger.StockKey) (*ledger.Balance, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("lock balance %s: no transaction", key)
	}
	var out ledger.Balance
	r.s.read(ctx, func(d *state) {
		b, ok := d.balances[key.String()]
		if !ok {
			now := nowUTC()
			b = ledger.Balance{ID: id.New(), StockKey: key, Version: 1, CreatedAt: now, UpdatedAt: now}
			d.balances[key.String()] = b
		}
		out = b
	})
	return &out, nil
}

func (r *BalanceRepo) Save(ctx context.Context, b *ledger.Balance) error {
	return r.s.write(ctx, func(d *state) error {
		cur, ok := d.balances[b.StockKey.String()]
		if !ok {
			return fmt.Errorf("save balance %s: row missing", b.StockKey)
		}
		if cur.Version != b.Version {
			return apperror.NewConcurrentModification("balance", b.ID)
		}
		b.Version++
		d.balances[b.StockKey.String()] = *b
		return nil
	})
}

func (r *BalanceRepo) Get(ctx context.Context, key ledger.StockKey) (*ledger.Balance, error) {
	var out *ledger.Balance
	r.s.read(ctx, func(d *state) {
		if b, ok := d.balances[key.String()]; ok {
			out = &b
		}
	})
	return out, nil
}

func (r *BalanceRepo) List(ctx context.Context, tenantID id.ID, f ledger.BalanceFilter) ([]ledger.Balance, int64, error) {
	var items []ledger.Balance
	r.s.read(ctx, func(d *state) {
		for _, b := range d.balances {
			switch {
			case b.TenantID != tenantID:
			case f.ProductID != nil && b.ProductID != *f.ProductID:
			case f.VariantID != nil && !id.Equal(b.VariantID, f.VariantID):
			case f.WarehouseID != nil && b.WarehouseID != *f.WarehouseID:
			case f.LocationID != nil && !id.Equal(b.LocationID, f.LocationID):
			case f.ExcludeZero && b.Quantity.IsZero() && b.ReservedQuantity.IsZero():
			default:
				items = append(items, b)
			}
		}
	})
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].StockKey.String() < items[j].StockKey.String()
	})
	lo, hi := window(len(items), f.Limit, f.Offset)
	return items[lo:hi], int64(len(items)), nil
}

func (r *BalanceRepo) Summary(ctx context.Context, tenantID, productID id.ID, warehouseID *id.ID) (ledger.Summary, error) {
	sum := ledger.Summary{ProductID: productID, WarehouseID: id.Clone(warehouseID)}
	r.s.read(ctx, func(d *state) {
		for _, b := range d.balances {
			if b.TenantID != tenantID || b.ProductID != productID {
				continue
			}
			if warehouseID != nil && b.WarehouseID != *warehouseID {
				continue
			}
			sum.OnHand = sum.OnHand.Add(b.Quantity)
			sum.Reserved = sum.Reserved.Add(b.ReservedQuantity)
			sum.Keys++
		}
	})
	sum.Available = sum.OnHand.Sub(sum.Reserved)
	return sum, nil
}
