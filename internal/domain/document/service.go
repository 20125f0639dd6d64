package document

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/outbox"
	"stockledger/pkg/logger"
)

var tracer = otel.Tracer("stockledger/document")

// Ledger appends movements on behalf of confirmed documents.
type Ledger interface {
	Append(ctx context.Context, a actor.Actor, d ledger.Draft) (*ledger.Movement, error)
}

// Approver decides whether a draft may be approved. A denial is an APPROVAL_DENIED error.
type Approver interface {
	Approve(ctx context.Context, d *Document) error
}

// Config wires the document service.
type Config struct {
	Repo      Repository
	Ledger    Ledger
	TxManager tx.Manager
	Catalog   ledger.RefValidator
	Numerator numerator.Generator
	Approver  Approver
	Audit     audit.Sink
	Outbox    outbox.Writer
}

// Service is the document processor.
type Service struct {
	repo      Repository
	ledger    Ledger
	txm       tx.Manager
	catalog   ledger.RefValidator
	numerator numerator.Generator
	approver  Approver
	audit     audit.Sink
	outbox    outbox.Writer
}

// NewService creates the document service.
func NewService(cfg Config) *Service {
	return &Service{
		repo:      cfg.Repo,
		ledger:    cfg.Ledger,
		txm:       cfg.TxManager,
		catalog:   cfg.Catalog,
		numerator: cfg.Numerator,
		approver:  cfg.Approver,
		audit:     cfg.Audit,
		outbox:    cfg.Outbox,
	}
}

// CompletedEvent is the outbox payload of a completed document.
type CompletedEvent struct {
	Document    Document `json:"document"`
	MovementIDs []id.ID  `json:"movementIds"`
}

// Create stores a new DRAFT document and assigns its number.
func (s *Service) Create(ctx context.Context, a actor.Actor, in Input) (*Document, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &Document{
		ID:                     id.New(),
		TenantID:               a.TenantID,
		Type:                   in.Type,
		Status:                 StatusDraft,
		WarehouseID:            id.Clone(in.WarehouseID),
		LocationID:             id.Clone(in.LocationID),
		DestinationWarehouseID: id.Clone(in.DestinationWarehouseID),
		DestinationLocationID:  id.Clone(in.DestinationLocationID),
		PartnerReference:       in.PartnerReference,
		Notes:                  in.Notes,
		Metadata:               in.Metadata,
		CreatedBy:              a.UserID,
		CreatedAt:              now,
		UpdatedAt:              now,
		Version:                1,
	}
	d.Lines = in.lines(d.ID)

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.validateRefs(ctx, a.TenantID, d); err != nil {
			return err
		}
		number, err := s.numerator.Next(ctx, a.TenantID, numerator.DefaultConfig(d.Type.NumberPrefix()), now)
		if err != nil {
			return err
		}
		d.Number = number

		if err := s.repo.Create(ctx, d); err != nil {
			return err
		}
		return audit.Record(ctx, s.audit, a, audit.EntityDocument, d.ID, audit.ActionCreate, nil, d, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document created", "document_id", d.ID, "number", d.Number, "type", d.Type)
	return d, nil
}

// Update replaces the editable fields and lines of a DRAFT document.
// The type of a document never changes.
func (s *Service) Update(ctx context.Context, a actor.Actor, documentID id.ID, in Input) (*Document, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	var out *Document
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, a.TenantID, documentID)
		if err != nil {
			return err
		}
		if d.Status != StatusDraft {
			return apperror.NewInvalidStateTransition("document", string(d.Status), "update")
		}
		if in.Type == "" {
			in.Type = d.Type
		}
		if in.Type != d.Type {
			return apperror.NewValidation("document type cannot be changed").WithDetail("field", "type")
		}
		if err := in.Validate(); err != nil {
			return err
		}
		before := *d

		d.WarehouseID = id.Clone(in.WarehouseID)
		d.LocationID = id.Clone(in.LocationID)
		d.DestinationWarehouseID = id.Clone(in.DestinationWarehouseID)
		d.DestinationLocationID = id.Clone(in.DestinationLocationID)
		d.PartnerReference = in.PartnerReference
		d.Notes = in.Notes
		d.Metadata = in.Metadata
		d.Lines = in.lines(d.ID)
		d.UpdatedAt = time.Now().UTC()

		if err := s.validateRefs(ctx, a.TenantID, d); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, d, true); err != nil {
			return err
		}
		out = d
		return audit.Record(ctx, s.audit, a, audit.EntityDocument, d.ID, audit.ActionUpdate, &before, d, nil)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a DRAFT document with its lines.
func (s *Service) Delete(ctx context.Context, a actor.Actor, documentID id.ID) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, a.TenantID, documentID)
		if err != nil {
			return err
		}
		if d.Status != StatusDraft {
			return apperror.NewInvalidStateTransition("document", string(d.Status), "delete")
		}
		if err := s.repo.Delete(ctx, a.TenantID, documentID); err != nil {
			return err
		}
		return audit.Record(ctx, s.audit, a, audit.EntityDocument, d.ID, audit.ActionDelete, d, nil, nil)
	})
}

// Confirm approves a DRAFT document, emits its movements and completes it in one
// transaction. Any failure leaves the document in DRAFT with no movements written.
func (s *Service) Confirm(ctx context.Context, a actor.Actor, documentID id.ID) (*Document, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	var (
		out   *Document
		moves []id.ID
	)
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ctx, span := tracer.Start(ctx, "document.Confirm")
		defer span.End()
		span.SetAttributes(attribute.String("document.id", documentID.String()))

		d, err := s.repo.GetForUpdate(ctx, a.TenantID, documentID)
		if err != nil {
			return err
		}
		if d.Status != StatusDraft {
			return apperror.NewInvalidStateTransition("document", string(d.Status), "confirm")
		}
		span.SetAttributes(attribute.String("document.type", string(d.Type)))
		before := *d

		if s.approver != nil {
			if err := s.approver.Approve(ctx, d); err != nil {
				return err
			}
		}
		d.Status = StatusApproved
		d.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, d, false); err != nil {
			return err
		}

		drafts, err := Plan(d)
		if err != nil {
			return err
		}
		moves = make([]id.ID, 0, len(drafts))
		for _, draft := range drafts {
			m, err := s.ledger.Append(ctx, a, draft)
			if err != nil {
				return err
			}
			moves = append(moves, m.ID)
		}

		now := time.Now().UTC()
		d.Status = StatusCompleted
		d.ConfirmedBy = a.UserID
		d.ConfirmedAt = &now
		d.UpdatedAt = now
		if err := s.repo.Update(ctx, d, false); err != nil {
			return err
		}
		if err := audit.Record(ctx, s.audit, a, audit.EntityDocument, d.ID, audit.ActionConfirm, &before, d,
			map[string]any{"movements": len(moves)}); err != nil {
			return err
		}
		if s.outbox != nil {
			msg, err := outbox.NewMessage(a.TenantID, audit.EntityDocument, d.ID, outbox.EventDocumentCompleted,
				CompletedEvent{Document: *d, MovementIDs: moves})
			if err != nil {
				return err
			}
			if err := s.outbox.Enqueue(ctx, msg); err != nil {
				return err
			}
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document confirmed", "document_id", out.ID, "number", out.Number, "movements", len(moves))
	return out, nil
}

// Submit moves a DRAFT document to PENDING.
func (s *Service) Submit(ctx context.Context, a actor.Actor, documentID id.ID) (*Document, error) {
	return s.UpdateStatus(ctx, a, documentID, StatusPending, "")
}

// Reject moves a DRAFT or PENDING document to REJECTED.
func (s *Service) Reject(ctx context.Context, a actor.Actor, documentID id.ID, reason string) (*Document, error) {
	return s.UpdateStatus(ctx, a, documentID, StatusRejected, reason)
}

// Cancel cancels a document that has not completed.
func (s *Service) Cancel(ctx context.Context, a actor.Actor, documentID id.ID, reason string) (*Document, error) {
	return s.UpdateStatus(ctx, a, documentID, StatusCancelled, reason)
}

// UpdateStatus performs a non-emitting status transition.
func (s *Service) UpdateStatus(ctx context.Context, a actor.Actor, documentID id.ID, to Status, reason string) (*Document, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}

	var out *Document
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, a.TenantID, documentID)
		if err != nil {
			return err
		}
		if !CanTransition(d.Status, to) {
			return apperror.NewInvalidStateTransition("document", string(d.Status), "set status "+string(to))
		}
		from := d.Status
		d.Status = to
		d.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, d, false); err != nil {
			return err
		}
		out = d

		meta := map[string]any{"from_status": string(from), "to_status": string(to)}
		if reason != "" {
			meta["reason"] = reason
		}
		return audit.Record(ctx, s.audit, a, audit.EntityDocument, d.ID, audit.ActionStatusUpdate, nil, nil, meta)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a document with lines.
func (s *Service) Get(ctx context.Context, a actor.Actor, documentID id.ID) (*Document, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, a.TenantID, documentID)
}

// List returns document headers, newest first.
func (s *Service) List(ctx context.Context, a actor.Actor, f ListFilter) (domain.ListResult[Document], error) {
	if err := a.Validate(); err != nil {
		return domain.ListResult[Document]{}, err
	}
	f.Page = f.Page.Normalize(50, 500)
	items, total, err := s.repo.List(ctx, a.TenantID, f)
	if err != nil {
		return domain.ListResult[Document]{}, err
	}
	return domain.ListResult[Document]{Items: items, TotalCount: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *Service) validateRefs(ctx context.Context, tenantID id.ID, d *Document) error {
	for _, l := range d.Lines {
		wh, loc := d.lineWarehouse(l)
		refs := catalog.Refs{
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			WarehouseID: *wh,
			LocationID:  loc,
			BatchID:     l.BatchID,
			SeriesID:    l.SeriesID,
		}
		if err := s.catalog.Validate(ctx, tenantID, refs); err != nil {
			return err
		}
		if d.DestinationWarehouseID != nil {
			refs.WarehouseID = *d.DestinationWarehouseID
			refs.LocationID = d.DestinationLocationID
			if err := s.catalog.Validate(ctx, tenantID, refs); err != nil {
				return err
			}
		}
	}
	return nil
}
