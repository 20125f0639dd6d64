// Package tx defines the unit-of-work abstraction used by every ledger mutation.
package tx

import (
	"context"
)

// Manager is the unit of work. All repository calls made with the ctx handed to fn
// share one atomic scope: they commit together or roll back together.
//
// Nested calls reuse the transaction already present in ctx, so the document
// processor can call the ledger, which calls the balance projector, without
// opening independent transactions.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transactions for consistent multi-query reads.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
