package document_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/document"
)

func TestNew_ColumnSets(t *testing.T) {
	r := New(nil)
	assert.Contains(t, r.cols, "metadata")
	assert.NotContains(t, r.cols, "lines")
	assert.Contains(t, r.lineCols, "document_id")
	assert.Contains(t, r.lineCols, "unit_price")
}

func TestListQuery(t *testing.T) {
	r := New(nil)
	typ := document.TypeGoodsReceipt

	sql, args, err := r.listQuery(id.New(), document.ListFilter{Type: &typ, Search: "gr-"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM documents WHERE tenant_id = $1 AND type = $2 AND (number ILIKE $3 OR partner_reference ILIKE $4)")
	assert.Equal(t, "%gr-%", args[2])
}
