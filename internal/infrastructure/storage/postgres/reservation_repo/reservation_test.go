package reservation_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/reservation"
)

func TestListQuery(t *testing.T) {
	r := New(nil)
	st := reservation.StatusConfirmed

	sql, args, err := r.listQuery(id.New(), reservation.ListFilter{Status: &st, ReferenceID: "SO-1"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM stock_reservations WHERE tenant_id = $1 AND status = $2 AND reference_id = $3")
	assert.Equal(t, "SO-1", args[2])
}

func TestExpiredQuery_OnlyOpenReservations(t *testing.T) {
	r := New(nil)
	now := time.Now()

	sql, args, err := r.expiredQuery(id.New(), now).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "status IN ($1,$2)")
	assert.Contains(t, sql, "expires_at IS NOT NULL AND expires_at < $4 ORDER BY expires_at, id")
	assert.Contains(t, args, now)
}
