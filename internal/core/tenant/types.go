// Package tenant describes the tenants that partition every ledger row.
// All tenants share one store; rows carry tenant_id and every query filters by it.
package tenant

import (
	"time"

	"stockledger/internal/core/id"
)

// Status represents tenant lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// Tenant is a row of the tenants table.
type Tenant struct {
	ID          id.ID     `db:"id"`
	Slug        string    `db:"slug"`
	DisplayName string    `db:"display_name"`
	Status      Status    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// IsActive returns true if tenant can accept requests.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}
