// Package app wires the domain services on top of a storage backend.
package app

import (
	"time"

	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/document"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/ingest"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/outbox"
	"stockledger/internal/domain/query"
	"stockledger/internal/domain/reservation"
)

// Stores is a storage backend: postgres in production, memory in tests.
type Stores struct {
	TxManager    tx.Manager
	Catalog      catalog.Repository
	Movements    ledger.MovementRepository
	Balances     ledger.BalanceRepository
	Reservations reservation.Repository
	Documents    document.Repository
	Audit        audit.Sink
	Outbox       outbox.Writer
	Idempotency  idempotency.Store
	Numerator    numerator.Generator
}

// Options are the optional collaborators.
type Options struct {
	Observer       ledger.BalanceObserver
	Cache          query.BalanceCache
	Approver       document.Approver
	IdempotencyTTL time.Duration
}

// Services is the domain API.
type Services struct {
	Catalog      *catalog.Service
	Ledger       *ledger.Service
	Reservations *reservation.Service
	Documents    *document.Service
	Query        *query.Facade
	Ingest       *ingest.Ingestor
}

// NewServices builds every domain service.
func NewServices(st Stores, opts Options) *Services {
	cat := catalog.NewService(st.Catalog, st.TxManager, st.Audit)

	led := ledger.NewService(ledger.Config{
		Movements:      st.Movements,
		Balances:       st.Balances,
		TxManager:      st.TxManager,
		Catalog:        cat,
		Audit:          st.Audit,
		Outbox:         st.Outbox,
		Idempotency:    st.Idempotency,
		IdempotencyTTL: opts.IdempotencyTTL,
		Observer:       opts.Observer,
	})

	res := reservation.NewService(reservation.Config{
		Repo:           st.Reservations,
		Ledger:         led,
		TxManager:      st.TxManager,
		Catalog:        cat,
		Audit:          st.Audit,
		Outbox:         st.Outbox,
		Idempotency:    st.Idempotency,
		IdempotencyTTL: opts.IdempotencyTTL,
	})

	docs := document.NewService(document.Config{
		Repo:      st.Documents,
		Ledger:    led,
		TxManager: st.TxManager,
		Catalog:   cat,
		Numerator: st.Numerator,
		Approver:  opts.Approver,
		Audit:     st.Audit,
		Outbox:    st.Outbox,
	})

	return &Services{
		Catalog:      cat,
		Ledger:       led,
		Reservations: res,
		Documents:    docs,
		Query:        query.NewFacade(st.Movements, st.Balances, opts.Cache),
		Ingest:       ingest.NewIngestor(led, st.Balances, st.TxManager, st.Idempotency, 0),
	}
}
