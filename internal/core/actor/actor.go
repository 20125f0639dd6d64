// Package actor carries the caller identity threaded through every ledger operation.
package actor

import (
	"context"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// Actor identifies who performs an operation and on behalf of which tenant.
// Tenant isolation is enforced from TenantID only; it is never read from request payloads.
type Actor struct {
	TenantID id.ID
	UserID   string
}

// New builds an actor for an authenticated user.
func New(tenantID id.ID, userID string) Actor {
	return Actor{TenantID: tenantID, UserID: userID}
}

// Worker builds the actor used by background jobs of a tenant.
func Worker(tenantID id.ID, job string) Actor {
	return Actor{TenantID: tenantID, UserID: workerPrefix + job}
}

const workerPrefix = "worker:"

// Job returns the background job name of a worker actor.
func (a Actor) Job() (string, bool) {
	return strings.CutPrefix(a.UserID, workerPrefix)
}

// Validate rejects actors without a tenant.
func (a Actor) Validate() error {
	if id.IsNil(a.TenantID) {
		return apperror.NewUnauthorized("tenant is required")
	}
	return nil
}

type ctxKey struct{}

// WithActor stores the actor in ctx for logging and transport layers.
// Domain services take the actor as an explicit parameter instead.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored by WithActor.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
