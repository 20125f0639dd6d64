// Package document_repo stores documents and their lines in PostgreSQL.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/document"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "documents"
	linesTable     = "document_lines"
)

// Repo implements document.Repository. Lines are written with COPY and
// removed by ON DELETE CASCADE.
type Repo struct {
	txm       *postgres.TxManager
	batch     *postgres.BatchInserter
	cols      []string
	lineCols  []string
	immutable map[string]bool
}

var _ document.Repository = (*Repo)(nil)

// New creates a document repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:      txm,
		batch:    postgres.NewBatchInserter(txm),
		cols:     postgres.ExtractDBColumns[document.Document](),
		lineCols: postgres.ExtractDBColumns[document.Line](),
		immutable: map[string]bool{
			"id": true, "tenant_id": true, "number": true, "type": true,
			"created_by": true, "created_at": true, "version": true,
		},
	}
}

func (r *Repo) Create(ctx context.Context, d *document.Document) error {
	if err := postgres.Insert(ctx, r.txm.GetQuerier(ctx), documentsTable, r.cols, d); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewValidation("document number already used").WithDetail("number", d.Number)
		}
		return err
	}
	return r.insertLines(ctx, d)
}

func (r *Repo) insertLines(ctx context.Context, d *document.Document) error {
	if len(d.Lines) == 0 {
		return nil
	}
	for i := range d.Lines {
		d.Lines[i].DocumentID = d.ID
	}
	_, err := r.batch.CopyFromSlice(ctx, linesTable, r.lineCols, postgres.Rows(d.Lines, r.lineCols))
	return err
}

func (r *Repo) byID(tenantID, documentID id.ID) squirrel.SelectBuilder {
	return postgres.Builder().Select(r.cols...).From(documentsTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": documentID})
}

func (r *Repo) load(ctx context.Context, q postgres.Querier, sel squirrel.SelectBuilder, documentID id.ID) (*document.Document, error) {
	var d document.Document
	found, err := postgres.GetOne(ctx, q, &d, sel)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if !found {
		return nil, apperror.NewNotFound("document", documentID.String())
	}

	sql, args, err := postgres.Builder().Select(r.lineCols...).From(linesTable).
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &d.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get document lines: %w", err)
	}
	return &d, nil
}

func (r *Repo) Get(ctx context.Context, tenantID, documentID id.ID) (*document.Document, error) {
	return r.load(ctx, r.txm.GetQuerier(ctx), r.byID(tenantID, documentID), documentID)
}

// GetForUpdate locks the header row; lines are only changed under that lock.
func (r *Repo) GetForUpdate(ctx context.Context, tenantID, documentID id.ID) (*document.Document, error) {
	t, err := r.txm.RequireTx(ctx, "lock document")
	if err != nil {
		return nil, err
	}
	return r.load(ctx, t.Tx, r.byID(tenantID, documentID).Suffix("FOR UPDATE"), documentID)
}

func (r *Repo) Update(ctx context.Context, d *document.Document, replaceLines bool) error {
	data := postgres.StructToMap(d)
	values := make(map[string]any, len(r.cols))
	for _, c := range r.cols {
		if !r.immutable[c] {
			values[c] = data[c]
		}
	}

	sql, args, err := postgres.Builder().Update(documentsTable).
		SetMap(values).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"tenant_id": d.TenantID, "id": d.ID, "version": d.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update document %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("document", d.ID)
	}
	d.Version++

	if !replaceLines {
		return nil
	}
	if _, err := querier.Exec(ctx, "DELETE FROM document_lines WHERE document_id = $1", d.ID); err != nil {
		return fmt.Errorf("replace document lines: %w", err)
	}
	return r.insertLines(ctx, d)
}

func (r *Repo) Delete(ctx context.Context, tenantID, documentID id.ID) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx,
		"DELETE FROM documents WHERE tenant_id = $1 AND id = $2", tenantID, documentID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("document", documentID.String())
	}
	return nil
}

func (r *Repo) List(ctx context.Context, tenantID id.ID, f document.ListFilter) ([]document.Document, int64, error) {
	return postgres.SelectPage[document.Document](ctx, r.txm.GetQuerier(ctx), r.listQuery(tenantID, f), f.Page,
		"created_at DESC", "number DESC")
}

func (r *Repo) listQuery(tenantID id.ID, f document.ListFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(r.cols...).From(documentsTable).
		Where(squirrel.Eq{"tenant_id": tenantID})
	q = postgres.EqOptional(q, "type", f.Type)
	q = postgres.EqOptional(q, "status", f.Status)
	q = postgres.EqOptional(q, "warehouse_id", f.WarehouseID)
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"partner_reference": pattern},
		})
	}
	return q
}
