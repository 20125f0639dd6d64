package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/document"
)

// DocumentRepo implements document.Repository.
type DocumentRepo struct{ s *Store }

// Documents returns the document repository.
func (s *Store) Documents() *DocumentRepo { return &DocumentRepo{s: s} }

var _ document.Repository = (*DocumentRepo)(nil)

func copyDocument(doc document.Document) document.Document {
	doc.Lines = slices.Clone(doc.Lines)
	doc.Metadata = maps.Clone(doc.Metadata)
	return doc
}

func (r *DocumentRepo) Create(ctx context.Context, doc *document.Document) error {
	return r.s.write(ctx, func(d *state) error {
		for _, other := range d.documents {
			if other.TenantID == doc.TenantID && other.Number == doc.Number {
				return fmt.Errorf("document number %s already used", doc.Number)
			}
		}
		d.documents[doc.ID] = copyDocument(*doc)
		return nil
	})
}

func (r *DocumentRepo) Get(ctx context.Context, tenantID, documentID id.ID) (*document.Document, error) {
	var out *document.Document
	r.s.read(ctx, func(d *state) {
		if doc, ok := d.documents[documentID]; ok && doc.TenantID == tenantID {
			c := copyDocument(doc)
			out = &c
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("document", documentID.String())
	}
	return out, nil
}

func (r *DocumentRepo) GetForUpdate(ctx context.Context, tenantID, documentID id.ID) (*document.Document, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("lock document %s: no transaction", documentID)
	}
	return r.Get(ctx, tenantID, documentID)
}

func (r *DocumentRepo) Update(ctx context.Context, doc *document.Document, replaceLines bool) error {
	return r.s.write(ctx, func(d *state) error {
		cur, ok := d.documents[doc.ID]
		if !ok || cur.TenantID != doc.TenantID {
			return apperror.NewNotFound("document", doc.ID.String())
		}
		if cur.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID)
		}
		next := copyDocument(*doc)
		if !replaceLines {
			next.Lines = cur.Lines
		}
		doc.Version++
		next.Version = doc.Version
		d.documents[doc.ID] = next
		return nil
	})
}

func (r *DocumentRepo) Delete(ctx context.Context, tenantID, documentID id.ID) error {
	return r.s.write(ctx, func(d *state) error {
		cur, ok := d.documents[documentID]
		if !ok || cur.TenantID != tenantID {
			return apperror.NewNotFound("document", documentID.String())
		}
		delete(d.documents, documentID)
		return nil
	})
}

func (r *DocumentRepo) List(ctx context.Context, tenantID id.ID, f document.ListFilter) ([]document.Document, int64, error) {
	var items []document.Document
	search := strings.ToLower(f.Search)
	r.s.read(ctx, func(d *state) {
		for _, doc := range d.documents {
			switch {
			case doc.TenantID != tenantID:
			case f.Type != nil && doc.Type != *f.Type:
			case f.Status != nil && doc.Status != *f.Status:
			case f.WarehouseID != nil && !id.Equal(doc.WarehouseID, f.WarehouseID):
			case search != "" && !strings.Contains(strings.ToLower(doc.Number), search) &&
				!strings.Contains(strings.ToLower(doc.PartnerReference), search):
			default:
				doc.Lines = nil
				items = append(items, copyDocument(doc))
			}
		}
	})
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].Number > items[j].Number
	})
	lo, hi := window(len(items), f.Limit, f.Offset)
	return items[lo:hi], int64(len(items)), nil
}
