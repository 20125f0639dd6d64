// Package stores assembles the PostgreSQL backend into app.Stores.
package stores

import (
	"stockledger/internal/app"
	"stockledger/internal/infrastructure/numerator"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/document_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/reservation_repo"
)

// Backend exposes the relay side of the outbox and the audit reader next to the
// domain stores.
type Backend struct {
	app.Stores
	OutboxStore *postgres.OutboxStore
	AuditLog    *postgres.AuditSink
	IdemStore   *postgres.IdempotencyStore
}

// New builds every repository over one transaction manager.
func New(txm *postgres.TxManager, numbering numerator.Options) (*Backend, error) {
	auditSink, err := postgres.NewAuditSink(txm)
	if err != nil {
		return nil, err
	}
	outboxStore := postgres.NewOutboxStore(txm)
	idem := postgres.NewIdempotencyStore(txm)

	return &Backend{
		Stores: app.Stores{
			TxManager:    txm,
			Catalog:      catalog_repo.NewItemRepo(txm),
			Movements:    ledger_repo.NewMovementRepo(txm),
			Balances:     ledger_repo.NewBalanceRepo(txm),
			Reservations: reservation_repo.New(txm),
			Documents:    document_repo.New(txm),
			Audit:        auditSink,
			Outbox:       outboxStore,
			Idempotency:  idem,
			Numerator:    numerator.New(txm, numbering),
		},
		OutboxStore: outboxStore,
		AuditLog:    auditSink,
		IdemStore:   idem,
	}, nil
}
