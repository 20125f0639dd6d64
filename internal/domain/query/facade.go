// Package query is the read side of the ledger: balance and movement listings.
package query

import (
	"context"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// BalanceCache is a read-through cache of single balance rows.
// Entries are invalidated by the ledger after commit.
type BalanceCache interface {
	GetBalance(ctx context.Context, key ledger.StockKey) (*ledger.Balance, bool, error)
	SetBalance(ctx context.Context, b *ledger.Balance) error
}

// Facade answers balance and movement queries.
type Facade struct {
	movements ledger.MovementRepository
	balances  ledger.BalanceRepository
	cache     BalanceCache
}

// NewFacade creates the query facade. cache may be nil.
func NewFacade(movements ledger.MovementRepository, balances ledger.BalanceRepository, cache BalanceCache) *Facade {
	return &Facade{movements: movements, balances: balances, cache: cache}
}

// BalancePage is a page of balances with page-number pagination.
type BalancePage struct {
	Items      []ledger.Balance `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int64            `json:"totalPages"`
}

// BalanceQuery filters ListBalances. Page is 1-based.
type BalanceQuery struct {
	ProductID   *id.ID
	VariantID   *id.ID
	WarehouseID *id.ID
	LocationID  *id.ID
	ExcludeZero bool
	Page        int
	Limit       int
}

// ListBalances returns balances ordered by last update, newest first.
func (f *Facade) ListBalances(ctx context.Context, a actor.Actor, q BalanceQuery) (BalancePage, error) {
	if err := a.Validate(); err != nil {
		return BalancePage{}, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	page := domain.Page{Limit: q.Limit, Offset: 0}.Normalize(100, 1000)
	page.Offset = (q.Page - 1) * page.Limit

	items, total, err := f.balances.List(ctx, a.TenantID, ledger.BalanceFilter{
		ProductID:   q.ProductID,
		VariantID:   q.VariantID,
		WarehouseID: q.WarehouseID,
		LocationID:  q.LocationID,
		ExcludeZero: q.ExcludeZero,
		Page:        page,
	})
	if err != nil {
		return BalancePage{}, err
	}
	res := domain.ListResult[ledger.Balance]{TotalCount: total, Limit: page.Limit}
	return BalancePage{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		Limit:      page.Limit,
		TotalPages: res.TotalPages(),
	}, nil
}

// GetBalance returns the balance at key. A key never touched by a movement reads as a zero balance.
func (f *Facade) GetBalance(ctx context.Context, a actor.Actor, key ledger.StockKey) (*ledger.Balance, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	key.TenantID = a.TenantID

	if f.cache != nil {
		b, ok, err := f.cache.GetBalance(ctx, key)
		if err != nil {
			logger.Warn(ctx, "balance cache read failed", "key", key.String(), "error", err)
		} else if ok {
			return b, nil
		}
	}

	b, err := f.balances.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return &ledger.Balance{StockKey: key}, nil
	}
	if f.cache != nil {
		if err := f.cache.SetBalance(ctx, b); err != nil {
			logger.Warn(ctx, "balance cache write failed", "key", key.String(), "error", err)
		}
	}
	return b, nil
}

// ListMovements returns movements, newest first.
func (f *Facade) ListMovements(ctx context.Context, a actor.Actor, mf ledger.MovementFilter) (domain.ListResult[ledger.Movement], error) {
	if err := a.Validate(); err != nil {
		return domain.ListResult[ledger.Movement]{}, err
	}
	mf.Page = mf.Page.Normalize(50, 1000)
	items, total, err := f.movements.List(ctx, a.TenantID, mf)
	if err != nil {
		return domain.ListResult[ledger.Movement]{}, err
	}
	return domain.ListResult[ledger.Movement]{Items: items, TotalCount: total, Limit: mf.Limit, Offset: mf.Offset}, nil
}

// AvailabilitySummary sums on-hand, reserved and available stock of a product,
// optionally within one warehouse.
func (f *Facade) AvailabilitySummary(ctx context.Context, a actor.Actor, productID id.ID, warehouseID *id.ID) (ledger.Summary, error) {
	if err := a.Validate(); err != nil {
		return ledger.Summary{}, err
	}
	return f.balances.Summary(ctx, a.TenantID, productID, warehouseID)
}
