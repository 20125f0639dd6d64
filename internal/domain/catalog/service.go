package catalog

import (
	"context"
	"time"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/pkg/logger"
)

// Service manages catalog items and resolves references for the ledger.
type Service struct {
	repo  Repository
	txm   tx.Manager
	audit audit.Sink
}

// NewService creates a catalog service.
func NewService(repo Repository, txm tx.Manager, sink audit.Sink) *Service {
	return &Service{repo: repo, txm: txm, audit: sink}
}

// CreateInput describes a new catalog item.
type CreateInput struct {
	Kind     Kind
	ParentID *id.ID
	Code     string
	Name     string
}

// Create adds an item. Scoped kinds must reference a parent of the same tenant.
func (s *Service) Create(ctx context.Context, a actor.Actor, in CreateInput) (*Item, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	item := &Item{
		ID:        id.New(),
		TenantID:  a.TenantID,
		Kind:      in.Kind,
		ParentID:  id.Clone(in.ParentID),
		Code:      in.Code,
		Name:      in.Name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if pk := item.Kind.ParentKind(); pk != "" {
			if _, err := s.repo.Get(ctx, a.TenantID, pk, *item.ParentID); err != nil {
				return err
			}
		}
		if err := s.repo.Create(ctx, item); err != nil {
			return err
		}
		return audit.Record(ctx, s.audit, a, audit.EntityCatalog, item.ID, audit.ActionCreate, nil, item, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "catalog item created", "kind", item.Kind, "id", item.ID, "code", item.Code)
	return item, nil
}

// Get returns an item of the actor's tenant.
func (s *Service) Get(ctx context.Context, a actor.Actor, kind Kind, itemID id.ID) (*Item, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, a.TenantID, kind, itemID)
}

// List returns items of one kind.
func (s *Service) List(ctx context.Context, a actor.Actor, f ListFilter) (domain.ListResult[Item], error) {
	if err := a.Validate(); err != nil {
		return domain.ListResult[Item]{}, err
	}
	f.Page = f.Page.Normalize(50, 500)
	items, total, err := s.repo.List(ctx, a.TenantID, f)
	if err != nil {
		return domain.ListResult[Item]{}, err
	}
	return domain.ListResult[Item]{Items: items, TotalCount: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Validate checks that every reference exists for the tenant. Variants must belong to
// the product and locations to the warehouse; a mismatch is reported as NotFound.
func (s *Service) Validate(ctx context.Context, tenantID id.ID, r Refs) error {
	if _, err := s.repo.Get(ctx, tenantID, KindProduct, r.ProductID); err != nil {
		return err
	}
	if r.VariantID != nil {
		v, err := s.repo.Get(ctx, tenantID, KindVariant, *r.VariantID)
		if err != nil {
			return err
		}
		if v.ParentID == nil || *v.ParentID != r.ProductID {
			return apperror.NewNotFound("variant", r.VariantID.String())
		}
	}
	if _, err := s.repo.Get(ctx, tenantID, KindWarehouse, r.WarehouseID); err != nil {
		return err
	}
	if r.LocationID != nil {
		l, err := s.repo.Get(ctx, tenantID, KindLocation, *r.LocationID)
		if err != nil {
			return err
		}
		if l.ParentID == nil || *l.ParentID != r.WarehouseID {
			return apperror.NewNotFound("location", r.LocationID.String())
		}
	}
	if r.BatchID != nil {
		if _, err := s.repo.Get(ctx, tenantID, KindBatch, *r.BatchID); err != nil {
			return err
		}
	}
	if r.SeriesID != nil {
		if _, err := s.repo.Get(ctx, tenantID, KindSeries, *r.SeriesID); err != nil {
			return err
		}
	}
	return nil
}
