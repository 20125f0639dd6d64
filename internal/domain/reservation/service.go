package reservation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/outbox"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/reservation")

// Ledger is the part of the movement ledger the reservation manager depends on.
type Ledger interface {
	AppendFulfilment(ctx context.Context, a actor.Actor, reservationID id.ID, d ledger.Draft) (*ledger.Movement, error)
	Projector() *ledger.Projector
	Notify(ctx context.Context, keys ...ledger.StockKey)
}

// Config wires the reservation service.
type Config struct {
	Repo           Repository
	Ledger         Ledger
	TxManager      tx.Manager
	Catalog        ledger.RefValidator
	Audit          audit.Sink
	Outbox         outbox.Writer
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	Now            func() time.Time
}

// Service is the reservation manager.
type Service struct {
	repo    Repository
	ledger  Ledger
	txm     tx.Manager
	catalog ledger.RefValidator
	audit   audit.Sink
	outbox  outbox.Writer
	idem    idempotency.Store
	idemTTL time.Duration
	now     func() time.Time
}

// NewService creates the reservation service.
func NewService(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		repo:    cfg.Repo,
		ledger:  cfg.Ledger,
		txm:     cfg.TxManager,
		catalog: cfg.Catalog,
		audit:   cfg.Audit,
		outbox:  cfg.Outbox,
		idem:    cfg.Idempotency,
		idemTTL: ttl,
		now:     now,
	}
}

// ChangeEvent is the outbox payload of a reservation change.
type ChangeEvent struct {
	Action      audit.Action `json:"action"`
	Reservation Reservation  `json:"reservation"`
}

// Reserve holds stock for a new PENDING reservation. The hold and the insert share one
// transaction; when available stock is short nothing is written.
func (s *Service) Reserve(ctx context.Context, a actor.Actor, in CreateInput) (*Reservation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	var out *Reservation
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.reserve(ctx, a, in)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "stock reserved", "reservation_id", out.ID, "product_id", out.ProductID, "quantity", out.Quantity)
	return out, nil
}

// ReserveIdempotent is Reserve guarded by a caller-supplied key. An empty key behaves like Reserve.
func (s *Service) ReserveIdempotent(ctx context.Context, a actor.Actor, key string, in CreateInput) (*Reservation, bool, error) {
	if key == "" || s.idem == nil {
		r, err := s.Reserve(ctx, a, in)
		return r, false, err
	}
	if err := a.Validate(); err != nil {
		return nil, false, err
	}
	var (
		out      *Reservation
		replayed bool
	)
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		r, rep, err := idempotency.Do(ctx, s.idem, s.idemTTL, a.TenantID, key, "reservation.create", in,
			func(ctx context.Context) (*Reservation, error) {
				return s.reserve(ctx, a, in)
			})
		out, replayed = r, rep
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, replayed, nil
}

func (s *Service) reserve(ctx context.Context, a actor.Actor, in CreateInput) (*Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.Reserve")
	defer span.End()

	now := s.now()
	if err := in.Validate(now); err != nil {
		return nil, err
	}
	typ, _ := ParseType(string(in.Type))
	priority := in.Priority
	if priority == 0 {
		priority = DefaultPriority
	}

	r := &Reservation{
		ID:               id.New(),
		TenantID:         a.TenantID,
		ProductID:        in.ProductID,
		VariantID:        id.Clone(in.VariantID),
		WarehouseID:      in.WarehouseID,
		LocationID:       id.Clone(in.LocationID),
		BatchID:          id.Clone(in.BatchID),
		SeriesID:         id.Clone(in.SeriesID),
		Quantity:         in.Quantity,
		ReservedQuantity: in.Quantity,
		Status:           StatusPending,
		Type:             typ,
		ReferenceID:      in.ReferenceID,
		ReferenceType:    in.ReferenceType,
		Priority:         priority,
		ExpiresAt:        in.ExpiresAt,
		Notes:            in.Notes,
		CreatedBy:        a.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}
	span.SetAttributes(attribute.String("reservation.id", r.ID.String()))

	if err := s.catalog.Validate(ctx, a.TenantID, catalog.Refs{
		ProductID:   r.ProductID,
		VariantID:   r.VariantID,
		WarehouseID: r.WarehouseID,
		LocationID:  r.LocationID,
		BatchID:     r.BatchID,
		SeriesID:    r.SeriesID,
	}); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Projector().Hold(ctx, r.Key(), r.Quantity); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	if err := s.record(ctx, a, r, audit.ActionCreate, nil, nil); err != nil {
		return nil, err
	}
	s.ledger.Notify(ctx, r.Key())
	return r, nil
}

// Confirm moves a PENDING reservation to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, a actor.Actor, reservationID id.ID) (*Reservation, error) {
	return s.mutate(ctx, a, reservationID, "confirm", func(ctx context.Context, r *Reservation) (audit.Action, map[string]any, error) {
		if !CanTransition(r.Status, StatusConfirmed) {
			return "", nil, apperror.NewInvalidStateTransition("reservation", string(r.Status), "confirm")
		}
		r.Status = StatusConfirmed
		return audit.ActionConfirm, nil, nil
	})
}

// Fulfill turns held stock into a real decrement by appending an OUT movement linked to the
// reservation. A nil qty fulfils the whole remaining amount.
func (s *Service) Fulfill(ctx context.Context, a actor.Actor, reservationID id.ID, qty *types.Quantity) (*Reservation, error) {
	return s.mutate(ctx, a, reservationID, "fulfill", func(ctx context.Context, r *Reservation) (audit.Action, map[string]any, error) {
		if r.Status != StatusConfirmed {
			return "", nil, apperror.NewInvalidStateTransition("reservation", string(r.Status), "fulfill")
		}

		amount := r.ReservedQuantity
		if qty != nil {
			amount = *qty
		}
		if !amount.IsPositive() {
			return "", nil, apperror.NewInvalidQuantity("fulfil quantity must be positive").
				WithDetail("quantity", amount.String())
		}
		if amount > r.ReservedQuantity {
			return "", nil, apperror.NewInvalidQuantity(fmt.Sprintf(
				"Cannot fulfill %s units. Only %s units remaining.", amount, r.ReservedQuantity))
		}

		m, err := s.ledger.AppendFulfilment(ctx, a, r.ID, ledger.Draft{
			Type:        ledger.MovementOut,
			ProductID:   r.ProductID,
			VariantID:   r.VariantID,
			WarehouseID: r.WarehouseID,
			LocationID:  r.LocationID,
			BatchID:     r.BatchID,
			SeriesID:    r.SeriesID,
			Quantity:    amount,
			Reference:   r.ReferenceID,
			Notes:       "Reservation fulfilment",
		})
		if err != nil {
			return "", nil, err
		}

		r.ReservedQuantity -= amount
		r.FulfilledQuantity += amount
		if r.ReservedQuantity.IsZero() {
			r.Status = StatusFulfilled
		}
		return audit.ActionFulfill, map[string]any{
			"quantity":    amount.String(),
			"movement_id": m.ID.String(),
		}, nil
	})
}

// Cancel releases the remaining hold of an open reservation.
func (s *Service) Cancel(ctx context.Context, a actor.Actor, reservationID id.ID, reason string) (*Reservation, error) {
	if reason == "" {
		reason = DefaultCancelReason
	}
	return s.mutate(ctx, a, reservationID, "cancel", func(ctx context.Context, r *Reservation) (audit.Action, map[string]any, error) {
		if !CanTransition(r.Status, StatusCancelled) {
			return "", nil, apperror.NewInvalidStateTransition("reservation", string(r.Status), "cancel")
		}
		released, err := s.release(ctx, r)
		if err != nil {
			return "", nil, err
		}
		r.Status = StatusCancelled
		r.CancelReason = reason
		return audit.ActionCancel, map[string]any{"released": released.String(), "reason": reason}, nil
	})
}

// Expire releases an open reservation past its expiry and marks it EXPIRED.
// It returns expired=false without error when the reservation is terminal or not yet due,
// so repeated sweeps are harmless.
func (s *Service) Expire(ctx context.Context, a actor.Actor, reservationID id.ID) (bool, error) {
	expired := false
	_, err := s.mutate(ctx, a, reservationID, "expire", func(ctx context.Context, r *Reservation) (audit.Action, map[string]any, error) {
		if !r.IsExpired(s.now()) {
			return "", nil, nil
		}
		released, err := s.release(ctx, r)
		if err != nil {
			return "", nil, err
		}
		r.Status = StatusExpired
		expired = true
		return audit.ActionExpire, map[string]any{"released": released.String()}, nil
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

// ExpireDue expires up to limit due reservations of a tenant, one transaction each.
// Failures are logged and skipped so one broken row does not stall the sweep.
func (s *Service) ExpireDue(ctx context.Context, tenantID id.ID, limit int) (int, error) {
	a := actor.Worker(tenantID, "reservation-expiry")
	ids, err := s.repo.ListExpired(ctx, tenantID, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	n := 0
	for _, rid := range ids {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		ok, err := s.Expire(ctx, a, rid)
		if err != nil {
			logger.Warn(ctx, "reservation expiry failed", "reservation_id", rid, "error", err)
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *Service) release(ctx context.Context, r *Reservation) (types.Quantity, error) {
	released := r.ReservedQuantity
	if released.IsPositive() {
		if _, err := s.ledger.Projector().Release(ctx, r.Key(), released); err != nil {
			return 0, err
		}
		s.ledger.Notify(ctx, r.Key())
	}
	r.ReservedQuantity = 0
	return released, nil
}

// mutate locks a reservation, applies fn and persists the result with its audit record and
// outbox event. fn returning an empty action means nothing changed.
func (s *Service) mutate(ctx context.Context, a actor.Actor, reservationID id.ID, op string,
	fn func(ctx context.Context, r *Reservation) (audit.Action, map[string]any, error)) (*Reservation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	var out *Reservation
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "reservation."+op)
		defer span.End()
		span.SetAttributes(attribute.String("reservation.id", reservationID.String()))

		r, err := s.repo.GetForUpdate(ctx, a.TenantID, reservationID)
		if err != nil {
			return err
		}
		before := *r

		action, meta, err := fn(ctx, r)
		if err != nil {
			return err
		}
		out = r
		if action == "" {
			return nil
		}

		r.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		if meta == nil {
			meta = map[string]any{}
		}
		meta["from_status"] = string(before.Status)
		meta["to_status"] = string(r.Status)
		return s.record(ctx, a, r, action, &before, meta)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "reservation "+op, "reservation_id", out.ID, "status", out.Status)
	return out, nil
}

func (s *Service) record(ctx context.Context, a actor.Actor, r *Reservation, action audit.Action,
	before *Reservation, meta map[string]any) error {
	var prev any
	if before != nil {
		prev = before
	}
	if err := audit.Record(ctx, s.audit, a, audit.EntityReservation, r.ID, action, prev, r, meta); err != nil {
		return err
	}
	if s.outbox == nil {
		return nil
	}
	msg, err := outbox.NewMessage(a.TenantID, audit.EntityReservation, r.ID, outbox.EventReservationChanged,
		ChangeEvent{Action: action, Reservation: *r})
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, msg)
}

// Get returns a reservation of the actor's tenant.
func (s *Service) Get(ctx context.Context, a actor.Actor, reservationID id.ID) (*Reservation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, a.TenantID, reservationID)
}

// List returns reservations of the actor's tenant, newest first.
func (s *Service) List(ctx context.Context, a actor.Actor, f ListFilter) (domain.ListResult[Reservation], error) {
	if err := a.Validate(); err != nil {
		return domain.ListResult[Reservation]{}, err
	}
	f.Page = f.Page.Normalize(50, 500)
	items, total, err := s.repo.List(ctx, a.TenantID, f)
	if err != nil {
		return domain.ListResult[Reservation]{}, err
	}
	return domain.ListResult[Reservation]{Items: items, TotalCount: total, Limit: f.Limit, Offset: f.Offset}, nil
}
