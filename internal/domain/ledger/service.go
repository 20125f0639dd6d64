package ledger

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/outbox"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/ledger")

// RefValidator checks catalog references for a tenant.
type RefValidator interface {
	Validate(ctx context.Context, tenantID id.ID, refs catalog.Refs) error
}

// BalanceObserver is notified after a commit changed balances (cache invalidation).
type BalanceObserver interface {
	BalancesChanged(ctx context.Context, keys []StockKey)
}

// Config wires the ledger service.
type Config struct {
	Movements      MovementRepository
	Balances       BalanceRepository
	TxManager      tx.Manager
	Catalog        RefValidator
	Audit          audit.Sink
	Outbox         outbox.Writer
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	Observer       BalanceObserver
}

// Service is the movement ledger.
type Service struct {
	movements MovementRepository
	balances  BalanceRepository
	projector *Projector
	txm       tx.Manager
	catalog   RefValidator
	audit     audit.Sink
	outbox    outbox.Writer
	idem      idempotency.Store
	idemTTL   time.Duration
	observer  BalanceObserver
}

// NewService creates the ledger service.
func NewService(cfg Config) *Service {
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		movements: cfg.Movements,
		balances:  cfg.Balances,
		projector: NewProjector(cfg.Balances),
		txm:       cfg.TxManager,
		catalog:   cfg.Catalog,
		audit:     cfg.Audit,
		outbox:    cfg.Outbox,
		idem:      cfg.Idempotency,
		idemTTL:   ttl,
		observer:  cfg.Observer,
	}
}

// Projector exposes the balance projector to the reservation manager.
func (s *Service) Projector() *Projector {
	return s.projector
}

// MovementEvent is the outbox payload of a recorded movement.
type MovementEvent struct {
	Movement Movement  `json:"movement"`
	Balances []Balance `json:"balances"`
}

// Append records a movement, applies it to balances and writes its audit record in one
// unit of work. Called inside an outer transaction it joins that transaction.
func (s *Service) Append(ctx context.Context, a actor.Actor, d Draft) (*Movement, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	var out *Movement
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.append(ctx, a, d, nil)
		out = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendFulfilment records the OUT movement that consumes the hold of a reservation.
// The held units are taken from reservedQuantity instead of from available stock, so
// the caller must update the reservation row in the same transaction.
func (s *Service) AppendFulfilment(ctx context.Context, a actor.Actor, reservationID id.ID, d Draft) (*Movement, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if id.IsNil(reservationID) {
		return nil, apperror.NewValidation("reservation id is required")
	}
	if d.Type != MovementOut {
		return nil, apperror.NewValidation("a fulfilment must be an OUT movement").
			WithDetail("type", string(d.Type))
	}

	var out *Movement
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.append(ctx, a, d, &reservationID)
		out = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendIdempotent is Append guarded by a caller-supplied key. An empty key behaves like Append.
// The second return value reports whether the result was replayed.
func (s *Service) AppendIdempotent(ctx context.Context, a actor.Actor, key string, d Draft) (*Movement, bool, error) {
	if key == "" || s.idem == nil {
		m, err := s.Append(ctx, a, d)
		return m, false, err
	}
	if err := a.Validate(); err != nil {
		return nil, false, err
	}

	var (
		out      *Movement
		replayed bool
	)
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		m, r, err := idempotency.Do(ctx, s.idem, s.idemTTL, a.TenantID, key, "ledger.append", d,
			func(ctx context.Context) (*Movement, error) {
				return s.append(ctx, a, d, nil)
			})
		out, replayed = m, r
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if replayed {
		logger.Info(ctx, "movement replayed for idempotency key", "key", key, "movement_id", out.ID)
	}
	return out, replayed, nil
}

func (s *Service) append(ctx context.Context, a actor.Actor, d Draft, reservationID *id.ID) (*Movement, error) {
	ctx, span := tracer.Start(ctx, "ledger.Append")
	defer span.End()
	span.SetAttributes(attribute.String("movement.type", string(d.Type)))

	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := s.catalog.Validate(ctx, a.TenantID, d.sourceRefs()); err != nil {
		return nil, err
	}
	if d.Type == MovementTransfer {
		if err := s.catalog.Validate(ctx, a.TenantID, d.destinationRefs()); err != nil {
			return nil, err
		}
	}

	m := &Movement{
		ID:                     id.New(),
		TenantID:               a.TenantID,
		ProductID:              d.ProductID,
		VariantID:              id.Clone(d.VariantID),
		Type:                   d.Type,
		Quantity:               d.Quantity,
		WarehouseID:            d.WarehouseID,
		LocationID:             id.Clone(d.LocationID),
		DestinationWarehouseID: id.Clone(d.DestinationWarehouseID),
		DestinationLocationID:  id.Clone(d.DestinationLocationID),
		BatchID:                id.Clone(d.BatchID),
		SeriesID:               id.Clone(d.SeriesID),
		DocumentID:             id.Clone(d.DocumentID),
		ReservationID:          id.Clone(reservationID),
		Reference:              d.Reference,
		Notes:                  d.Notes,
		CreatedBy:              a.UserID,
		CreatedAt:              time.Now().UTC(),
	}
	if d.UnitCost != nil {
		unit := *d.UnitCost
		total := m.Quantity.Cost(unit)
		m.UnitCost, m.TotalCost = &unit, &total
	}

	balances, err := s.projector.Apply(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := s.movements.Create(ctx, m); err != nil {
		return nil, err
	}
	if err := audit.Record(ctx, s.audit, a, audit.EntityMovement, m.ID, audit.ActionCreate, nil, m, nil); err != nil {
		return nil, err
	}
	if s.outbox != nil {
		msg, err := outbox.NewMessage(a.TenantID, audit.EntityMovement, m.ID, outbox.EventMovementRecorded,
			MovementEvent{Movement: *m, Balances: balances})
		if err != nil {
			return nil, err
		}
		if err := s.outbox.Enqueue(ctx, msg); err != nil {
			return nil, err
		}
	}

	s.notify(ctx, balances)
	return m, nil
}

// Notify schedules observer notification for keys after the surrounding transaction commits.
func (s *Service) Notify(ctx context.Context, keys ...StockKey) {
	if s.observer == nil || len(keys) == 0 {
		return
	}
	tx.AfterCommit(ctx, func(ctx context.Context) {
		s.observer.BalancesChanged(ctx, keys)
	})
}

func (s *Service) notify(ctx context.Context, balances []Balance) {
	keys := make([]StockKey, len(balances))
	for i, b := range balances {
		keys[i] = b.StockKey
	}
	s.Notify(ctx, keys...)
}

// Get returns a movement of the actor's tenant.
func (s *Service) Get(ctx context.Context, a actor.Actor, movementID id.ID) (*Movement, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return s.movements.Get(ctx, a.TenantID, movementID)
}
