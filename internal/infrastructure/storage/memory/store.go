// Package memory is an in-process implementation of every repository and of the unit of
// work. Transactions are serialized by one mutex and roll back by restoring a snapshot,
// which gives the same observable isolation as row locks for tests and local runs.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"stockledger/internal/app"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/document"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/outbox"
	"stockledger/internal/domain/reservation"
)

type state struct {
	catalog       map[id.ID]catalog.Item
	balances      map[string]ledger.Balance
	movements     []ledger.Movement
	reservations  map[id.ID]reservation.Reservation
	documents     map[id.ID]document.Document
	audit         []audit.Entry
	outbox        []outbox.Message
	published     map[id.ID]bool
	outboxRetries map[id.ID]outboxState
	idempotency   map[string]idempotency.Record
	sequences     map[string]int64
}

func newState() *state {
	return &state{
		catalog:       map[id.ID]catalog.Item{},
		balances:      map[string]ledger.Balance{},
		reservations:  map[id.ID]reservation.Reservation{},
		documents:     map[id.ID]document.Document{},
		published:     map[id.ID]bool{},
		outboxRetries: map[id.ID]outboxState{},
		idempotency:   map[string]idempotency.Record{},
		sequences:     map[string]int64{},
	}
}

// clone copies the containers. Stored values are never mutated in place, so a
// shallow copy of each map is a complete snapshot.
func (s *state) clone() *state {
	return &state{
		catalog:       maps.Clone(s.catalog),
		balances:      maps.Clone(s.balances),
		movements:     slices.Clone(s.movements),
		reservations:  maps.Clone(s.reservations),
		documents:     maps.Clone(s.documents),
		audit:         slices.Clone(s.audit),
		outbox:        slices.Clone(s.outbox),
		published:     maps.Clone(s.published),
		outboxRetries: maps.Clone(s.outboxRetries),
		idempotency:   maps.Clone(s.idempotency),
		sequences:     maps.Clone(s.sequences),
	}
}

// Store holds all tables.
type Store struct {
	mu   sync.Mutex
	data *state
}

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

var _ tx.Manager = (*Store)(nil)

type txKey struct{}

// RunInTransaction runs fn holding the store lock. Nested calls join the outer
// transaction. On error every change made by fn is discarded.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	snapshot := s.data.clone()
	txCtx, hooks := tx.WithHooks(context.WithValue(ctx, txKey{}, true))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.data = snapshot
				s.mu.Unlock()
				panic(r)
			}
		}()
		return fn(txCtx)
	}()
	if err != nil {
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	hooks.Run(ctx)
	return nil
}

// ReadOnly runs fn in a transaction. The memory store does not enforce read-only access.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// read runs fn against the current state, taking the lock unless ctx already holds it.
func (s *Store) read(ctx context.Context, fn func(d *state)) {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn(s.data)
}

// write is read for mutations outside a transaction, which commit immediately.
func (s *Store) write(ctx context.Context, fn func(d *state) error) error {
	var err error
	s.read(ctx, func(d *state) { err = fn(d) })
	return err
}

// window applies limit/offset to n items.
func window(n, limit, offset int) (int, int) {
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

// Stores returns the store as a complete backend.
func (s *Store) Stores() app.Stores {
	return app.Stores{
		TxManager:    s,
		Catalog:      s.Catalog(),
		Movements:    s.Movements(),
		Balances:     s.Balances(),
		Reservations: s.Reservations(),
		Documents:    s.Documents(),
		Audit:        s.Audit(),
		Outbox:       s.Outbox(),
		Idempotency:  s.Idempotency(),
		Numerator:    s.Numerator(),
	}
}
