// Package ingest turns stock levels pulled from external systems into ADJUST movements.
package ingest

import (
	"context"
	"time"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// StockLevel is a target on-hand quantity reported by an external system.
type StockLevel struct {
	TenantID    id.ID          `json:"tenantId"`
	Source      string         `json:"source"`
	ExternalID  string         `json:"externalId"`
	ProductID   id.ID          `json:"productId"`
	VariantID   *id.ID         `json:"variantId,omitempty"`
	WarehouseID id.ID          `json:"warehouseId"`
	LocationID  *id.ID         `json:"locationId,omitempty"`
	BatchID     *id.ID         `json:"batchId,omitempty"`
	SeriesID    *id.ID         `json:"seriesId,omitempty"`
	Quantity    types.Quantity `json:"quantity"`
	ObservedAt  time.Time      `json:"observedAt"`
}

// Key returns the stock key the level applies to.
func (l *StockLevel) Key() ledger.StockKey {
	return ledger.StockKey{
		TenantID:    l.TenantID,
		ProductID:   l.ProductID,
		VariantID:   l.VariantID,
		WarehouseID: l.WarehouseID,
		LocationID:  l.LocationID,
		BatchID:     l.BatchID,
		SeriesID:    l.SeriesID,
	}
}

// IdempotencyKey identifies the level across redeliveries.
func (l *StockLevel) IdempotencyKey() string {
	return "erp:" + l.Source + ":" + l.ExternalID
}

func (l *StockLevel) validate() error {
	switch {
	case id.IsNil(l.TenantID):
		return apperror.NewValidation("tenantId is required")
	case l.Source == "" || l.ExternalID == "":
		return apperror.NewValidation("source and externalId are required")
	case l.Quantity.IsNegative():
		return apperror.NewInvalidQuantity("target quantity must not be negative").
			WithDetail("quantity", l.Quantity.String())
	}
	return nil
}

// Ledger is the ledger entry point used for corrections.
type Ledger interface {
	Append(ctx context.Context, a actor.Actor, d ledger.Draft) (*ledger.Movement, error)
}

// Ingestor applies external stock levels.
type Ingestor struct {
	ledger   Ledger
	balances ledger.BalanceRepository
	txm      tx.Manager
	idem     idempotency.Store
	ttl      time.Duration
}

// NewIngestor creates an ingestor. Keys are kept for ttl.
func NewIngestor(l Ledger, balances ledger.BalanceRepository, txm tx.Manager, idem idempotency.Store, ttl time.Duration) *Ingestor {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Ingestor{ledger: l, balances: balances, txm: txm, idem: idem, ttl: ttl}
}

// Apply adjusts the balance at the level's key to the target quantity. The current row is
// locked before the delta is computed. It returns nil when the balance already matches
// or the level was applied before.
func (i *Ingestor) Apply(ctx context.Context, level StockLevel) (*ledger.Movement, error) {
	if err := level.validate(); err != nil {
		return nil, err
	}
	a := actor.Worker(level.TenantID, "erp-"+level.Source)

	var out *ledger.Movement
	err := i.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		m, replayed, err := idempotency.Do(ctx, i.idem, i.ttl, level.TenantID, level.IdempotencyKey(), "erp.stock_level", level,
			func(ctx context.Context) (*ledger.Movement, error) {
				return i.adjust(ctx, a, level)
			})
		if err != nil {
			return err
		}
		if replayed {
			logger.Debug(ctx, "stock level already applied", "key", level.IdempotencyKey())
			return nil
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (i *Ingestor) adjust(ctx context.Context, a actor.Actor, level StockLevel) (*ledger.Movement, error) {
	b, err := i.balances.LockOrCreate(ctx, level.Key())
	if err != nil {
		return nil, err
	}
	delta := level.Quantity.Sub(b.Quantity)
	if delta.IsZero() {
		return nil, nil
	}
	return i.ledger.Append(ctx, a, ledger.Draft{
		Type:        ledger.MovementAdjust,
		ProductID:   level.ProductID,
		VariantID:   level.VariantID,
		WarehouseID: level.WarehouseID,
		LocationID:  level.LocationID,
		BatchID:     level.BatchID,
		SeriesID:    level.SeriesID,
		Quantity:    delta,
		Reference:   level.IdempotencyKey(),
		Notes:       "Stock level sync from " + level.Source,
	})
}
