package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/types"
)

// Projector keeps balances consistent with the movement log and with reservation holds.
// Every method must run inside the caller's transaction.
type Projector struct {
	balances BalanceRepository
}

// NewProjector creates a balance projector.
func NewProjector(balances BalanceRepository) *Projector {
	return &Projector{balances: balances}
}

// Apply applies the legs of m to their balances and returns the updated rows.
// Rows are locked in key order so that concurrent transfers between the same
// pair of keys cannot deadlock.
func (p *Projector) Apply(ctx context.Context, m *Movement) ([]Balance, error) {
	legs := m.Legs()
	if len(legs) == 0 {
		return nil, fmt.Errorf("movement %s has unknown type %q", m.ID, m.Type)
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].Key.String() < legs[j].Key.String() })

	out := make([]Balance, 0, len(legs))
	for _, leg := range legs {
		b, err := p.applyLeg(ctx, m, leg)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

func (p *Projector) applyLeg(ctx context.Context, m *Movement, leg Leg) (*Balance, error) {
	var (
		b   *Balance
		err error
	)

	switch {
	case m.Type == MovementAdjust:
		b, err = p.balances.LockOrCreate(ctx, leg.Key)
		if err != nil {
			return nil, err
		}
		next := b.Quantity + leg.Delta
		if next < 0 || next < b.ReservedQuantity {
			return nil, apperror.NewInvalidAdjustment(b.Quantity, leg.Delta).
				WithDetail("reserved", b.ReservedQuantity.String())
		}
		b.Quantity = next

	case leg.Delta < 0:
		amount := leg.Delta.Abs()
		b, err = p.balances.Lock(ctx, leg.Key)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, apperror.NewInsufficientStock(leg.Key.ProductID.String(), types.Quantity(0), amount)
		}
		if m.ReservationID != nil {
			// Fulfilment consumes stock already held for the reservation.
			if b.ReservedQuantity < amount || b.Quantity < amount {
				return nil, apperror.NewInsufficientStock(leg.Key.ProductID.String(), b.ReservedQuantity, amount)
			}
			b.ReservedQuantity -= amount
		} else if b.Available() < amount {
			return nil, apperror.NewInsufficientStock(leg.Key.ProductID.String(), b.Available(), amount)
		}
		b.Quantity -= amount

	default:
		b, err = p.balances.LockOrCreate(ctx, leg.Key)
		if err != nil {
			return nil, err
		}
		b.Quantity += leg.Delta
	}

	at := m.CreatedAt
	b.LastMovementAt = &at
	if err := p.save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Hold increases the reserved quantity at key. It fails with InsufficientStock when
// available stock is below qty and leaves the row untouched.
func (p *Projector) Hold(ctx context.Context, key StockKey, qty types.Quantity) (*Balance, error) {
	b, err := p.balances.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperror.NewInsufficientStock(key.ProductID.String(), types.Quantity(0), qty)
	}
	if b.Available() < qty {
		return nil, apperror.NewInsufficientStock(key.ProductID.String(), b.Available(), qty)
	}
	b.ReservedQuantity += qty
	if err := p.save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Release returns qty of held stock at key to available. On-hand quantity is untouched.
func (p *Projector) Release(ctx context.Context, key StockKey, qty types.Quantity) (*Balance, error) {
	b, err := p.balances.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("release %s at %s: balance row missing", qty, key)
	}
	if b.ReservedQuantity < qty {
		return nil, fmt.Errorf("release %s at %s exceeds reserved %s", qty, key, b.ReservedQuantity)
	}
	b.ReservedQuantity -= qty
	if err := p.save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (p *Projector) save(ctx context.Context, b *Balance) error {
	if err := b.check(); err != nil {
		return err
	}
	b.UpdatedAt = time.Now().UTC()
	if err := p.balances.Save(ctx, b); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}
