package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

// unreachable points at a closed port so any Redis round trip fails fast.
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func balance() ledger.Balance {
	return ledger.Balance{
		ID:       id.New(),
		StockKey: ledger.StockKey{TenantID: id.New(), ProductID: id.New(), WarehouseID: id.New()},
		Quantity: types.NewQuantity(7),
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(unreachable(), Config{})
	assert.Equal(t, DefaultConfig().Prefix, c.cfg.Prefix)
	assert.Equal(t, DefaultConfig().TTL, c.cfg.TTL)
}

func TestGetBalance_LocalTierHit(t *testing.T) {
	c := New(unreachable(), Config{LocalTTL: time.Minute})
	b := balance()
	c.storeLocal(b.StockKey.String(), b)

	got, ok, err := c.GetBalance(context.Background(), b.StockKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, b.Quantity, got.Quantity)
	assert.Equal(t, int64(1), c.Stats().LocalHits)
}

func TestGetBalance_ExpiredLocalFallsThroughToRedis(t *testing.T) {
	c := New(unreachable(), Config{LocalTTL: time.Nanosecond})
	b := balance()
	c.storeLocal(b.StockKey.String(), b)
	time.Sleep(time.Millisecond)

	_, ok, err := c.GetBalance(context.Background(), b.StockKey)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestHandleInvalidation_DropsLocalAndNotifies(t *testing.T) {
	c := New(unreachable(), Config{LocalTTL: time.Minute})
	c.ctx = context.Background()
	b := balance()
	c.storeLocal(b.StockKey.String(), b)

	var seen []string
	c.OnInvalidation(func(string) { panic("listener bug") })
	c.OnInvalidation(func(key string) { seen = append(seen, key) })

	c.handleInvalidation(b.StockKey.String())

	assert.Equal(t, []string{b.StockKey.String()}, seen)
	assert.Equal(t, 0, c.Stats().LocalEntries)
	assert.Equal(t, int64(1), c.Stats().Invalidations)
}

func TestBalancesChanged_DropsLocalEvenWhenRedisFails(t *testing.T) {
	c := New(unreachable(), Config{LocalTTL: time.Minute})
	b := balance()
	c.storeLocal(b.StockKey.String(), b)

	c.BalancesChanged(context.Background(), []ledger.StockKey{b.StockKey})

	assert.Equal(t, 0, c.Stats().LocalEntries)
}
