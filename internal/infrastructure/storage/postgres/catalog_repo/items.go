// Package catalog_repo stores catalog items in PostgreSQL.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/infrastructure/storage/postgres"
)

const itemsTable = "catalog_items"

// ItemRepo implements catalog.Repository.
type ItemRepo struct {
	txm  *postgres.TxManager
	cols []string
}

var _ catalog.Repository = (*ItemRepo)(nil)

// NewItemRepo creates a catalog repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{txm: txm, cols: postgres.ExtractDBColumns[catalog.Item]()}
}

func (r *ItemRepo) Create(ctx context.Context, item *catalog.Item) error {
	err := postgres.Insert(ctx, r.txm.GetQuerier(ctx), itemsTable, r.cols, item)
	if postgres.IsUniqueViolation(err) {
		return apperror.NewValidation("code already exists").
			WithDetail("kind", string(item.Kind)).WithDetail("code", item.Code)
	}
	return err
}

func (r *ItemRepo) Get(ctx context.Context, tenantID id.ID, kind catalog.Kind, itemID id.ID) (*catalog.Item, error) {
	q := postgres.Builder().Select(r.cols...).From(itemsTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "kind": kind, "id": itemID})

	var item catalog.Item
	found, err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &item, q)
	if err != nil {
		return nil, fmt.Errorf("get catalog item: %w", err)
	}
	if !found {
		return nil, apperror.NewNotFound(string(kind), itemID.String())
	}
	return &item, nil
}

func (r *ItemRepo) List(ctx context.Context, tenantID id.ID, f catalog.ListFilter) ([]catalog.Item, int64, error) {
	q := r.listQuery(tenantID, f)
	return postgres.SelectPage[catalog.Item](ctx, r.txm.GetQuerier(ctx), q, f.Page, "code")
}

func (r *ItemRepo) listQuery(tenantID id.ID, f catalog.ListFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(r.cols...).From(itemsTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "kind": f.Kind})
	q = postgres.EqOptional(q, "parent_id", f.ParentID)
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}
	return q
}
