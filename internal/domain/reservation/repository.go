package reservation

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Repository persists reservations.
type Repository interface {
	Create(ctx context.Context, r *Reservation) error

	Get(ctx context.Context, tenantID, reservationID id.ID) (*Reservation, error)

	// GetForUpdate locks the reservation row until the transaction ends.
	GetForUpdate(ctx context.Context, tenantID, reservationID id.ID) (*Reservation, error)

	// Update writes a locked reservation with an optimistic version check.
	Update(ctx context.Context, r *Reservation) error

	List(ctx context.Context, tenantID id.ID, f ListFilter) ([]Reservation, int64, error)

	// ListExpired returns ids of open reservations whose expiry is before now.
	ListExpired(ctx context.Context, tenantID id.ID, now time.Time, limit int) ([]id.ID, error)
}

// ListFilter narrows reservation listings.
type ListFilter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	LocationID  *id.ID
	Status      *Status
	ReferenceID string
	domain.Page
}
