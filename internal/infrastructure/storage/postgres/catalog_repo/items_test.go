package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalog"
)

func TestListQuery(t *testing.T) {
	r := NewItemRepo(nil)
	tenant, parent := id.New(), id.New()

	tests := []struct {
		name     string
		filter   catalog.ListFilter
		wantSQL  string
		wantArgs int
	}{
		{
			name:     "kind only",
			filter:   catalog.ListFilter{Kind: catalog.KindWarehouse},
			wantSQL:  "SELECT id, tenant_id, kind, parent_id, code, name, active, created_at FROM catalog_items WHERE kind = $1 AND tenant_id = $2",
			wantArgs: 2,
		},
		{
			name:     "parent and search",
			filter:   catalog.ListFilter{Kind: catalog.KindLocation, ParentID: &parent, Search: "A1"},
			wantSQL:  "SELECT id, tenant_id, kind, parent_id, code, name, active, created_at FROM catalog_items WHERE kind = $1 AND tenant_id = $2 AND parent_id = $3 AND (name ILIKE $4 OR code ILIKE $5)",
			wantArgs: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := r.listQuery(tenant, tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}
