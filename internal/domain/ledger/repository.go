package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
)

// MovementRepository stores the append-only movement log.
type MovementRepository interface {
	// Create inserts a movement. There is no update or delete.
	Create(ctx context.Context, m *Movement) error

	Get(ctx context.Context, tenantID, movementID id.ID) (*Movement, error)

	List(ctx context.Context, tenantID id.ID, f MovementFilter) ([]Movement, int64, error)
}

// BalanceRepository stores projected balances. Lock methods must be called inside a
// transaction; the row stays locked until it ends.
type BalanceRepository interface {
	// Lock returns the row at key with a row lock, or nil when no row exists.
	Lock(ctx context.Context, key StockKey) (*Balance, error)

	// LockOrCreate materializes a zero row when absent, then locks it.
	LockOrCreate(ctx context.Context, key StockKey) (*Balance, error)

	// Save writes quantity, reserved and last movement time of a locked row and bumps its version.
	Save(ctx context.Context, b *Balance) error

	// Get reads a row without locking, or nil when absent.
	Get(ctx context.Context, key StockKey) (*Balance, error)

	List(ctx context.Context, tenantID id.ID, f BalanceFilter) ([]Balance, int64, error)

	// Summary sums balances of a product, optionally within one warehouse.
	Summary(ctx context.Context, tenantID, productID id.ID, warehouseID *id.ID) (Summary, error)
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID     *id.ID
	WarehouseID   *id.ID
	Type          *MovementType
	DocumentID    *id.ID
	ReservationID *id.ID
	From          *time.Time
	To            *time.Time
	domain.Page
}

// BalanceFilter narrows balance listings.
type BalanceFilter struct {
	ProductID   *id.ID
	VariantID   *id.ID
	WarehouseID *id.ID
	LocationID  *id.ID
	ExcludeZero bool
	domain.Page
}

// Summary aggregates balances of a product across keys.
type Summary struct {
	ProductID   id.ID          `json:"productId"`
	WarehouseID *id.ID         `json:"warehouseId,omitempty"`
	OnHand      types.Quantity `json:"onHand"`
	Reserved    types.Quantity `json:"reserved"`
	Available   types.Quantity `json:"available"`
	Keys        int            `json:"keys"`
}
