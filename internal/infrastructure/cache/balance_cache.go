// Package cache provides the balance read cache: a short-lived in-process tier in
// front of Redis, with invalidations fanned out to every instance over pub/sub.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/query"
	"stockledger/pkg/logger"
)

// InvalidationChannel carries stock key strings of changed balances.
const InvalidationChannel = "stockledger:balances:invalidate"

// Config tunes the cache tiers.
type Config struct {
	Prefix   string
	TTL      time.Duration
	LocalTTL time.Duration
}

// DefaultConfig returns the defaults used by the server.
func DefaultConfig() Config {
	return Config{Prefix: "stockledger:balance:", TTL: 5 * time.Minute, LocalTTL: 2 * time.Second}
}

type localEntry struct {
	b       ledger.Balance
	expires time.Time
}

// InvalidationListener is called for every invalidated key after the local tier dropped it.
type InvalidationListener func(key string)

// BalanceCache implements query.BalanceCache and ledger.BalanceObserver.
type BalanceCache struct {
	rdb redis.UniversalClient
	cfg Config

	mu    sync.RWMutex
	local map[string]localEntry

	listeners   []InvalidationListener
	listenersMu sync.RWMutex

	stats struct {
		sync.Mutex
		localHits, redisHits, misses, invalidations int64
	}

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

var (
	_ query.BalanceCache     = (*BalanceCache)(nil)
	_ ledger.BalanceObserver = (*BalanceCache)(nil)
)

// New creates a cache over rdb. Zero config fields take defaults.
func New(rdb redis.UniversalClient, cfg Config) *BalanceCache {
	def := DefaultConfig()
	if cfg.Prefix == "" {
		cfg.Prefix = def.Prefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.LocalTTL < 0 {
		cfg.LocalTTL = 0
	}
	return &BalanceCache{rdb: rdb, cfg: cfg, local: make(map[string]localEntry)}
}

func (c *BalanceCache) redisKey(key string) string {
	return c.cfg.Prefix + key
}

func (c *BalanceCache) GetBalance(ctx context.Context, key ledger.StockKey) (*ledger.Balance, bool, error) {
	k := key.String()

	c.mu.RLock()
	e, ok := c.local[k]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		c.count(func() { c.stats.localHits++ })
		b := e.b
		return &b, true, nil
	}

	raw, err := c.rdb.Get(ctx, c.redisKey(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.count(func() { c.stats.misses++ })
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get balance: %w", err)
	}

	var b ledger.Balance
	if err := json.Unmarshal(raw, &b); err != nil {
		// Undecodable entries are treated as a miss and overwritten on the next load.
		c.count(func() { c.stats.misses++ })
		return nil, false, nil
	}
	c.count(func() { c.stats.redisHits++ })
	c.storeLocal(k, b)
	return &b, true, nil
}

func (c *BalanceCache) SetBalance(ctx context.Context, b *ledger.Balance) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal balance: %w", err)
	}
	k := b.StockKey.String()
	if err := c.rdb.Set(ctx, c.redisKey(k), raw, c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set balance: %w", err)
	}
	c.storeLocal(k, *b)
	return nil
}

func (c *BalanceCache) storeLocal(k string, b ledger.Balance) {
	if c.cfg.LocalTTL == 0 {
		return
	}
	c.mu.Lock()
	c.local[k] = localEntry{b: b, expires: time.Now().Add(c.cfg.LocalTTL)}
	c.mu.Unlock()
}

// BalancesChanged runs after commit. Failures are logged: an entry that survives
// expires after TTL.
func (c *BalanceCache) BalancesChanged(ctx context.Context, keys []ledger.StockKey) {
	if len(keys) == 0 {
		return
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		s := k.String()
		redisKeys[i] = c.redisKey(s)
		c.dropLocal(s)
	}

	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, redisKeys...)
	for _, k := range keys {
		pipe.Publish(ctx, InvalidationChannel, k.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn(ctx, "balance cache invalidation failed", "keys", len(keys), "error", err)
	}
}

func (c *BalanceCache) dropLocal(k string) {
	c.mu.Lock()
	delete(c.local, k)
	c.mu.Unlock()
	c.count(func() { c.stats.invalidations++ })
}

// Start subscribes to invalidations published by other instances.
func (c *BalanceCache) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return nil
	}

	sub := c.rdb.Subscribe(ctx, InvalidationChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", InvalidationChannel, err)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.wg.Add(1)
	go c.listenLoop(sub)
	logger.Info(c.ctx, "balance cache started", "channel", InvalidationChannel)
	return nil
}

// Stop ends the subscription and waits for the listener to exit.
func (c *BalanceCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
	logger.Info(context.Background(), "balance cache stopped")
}

func (c *BalanceCache) listenLoop(sub *redis.PubSub) {
	defer c.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.handleInvalidation(msg.Payload)
		}
	}
}

func (c *BalanceCache) handleInvalidation(key string) {
	c.dropLocal(key)

	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, l := range c.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(c.ctx, "invalidation listener panic recovered", "key", key, "panic", r)
				}
			}()
			l(key)
		}()
	}
}

// OnInvalidation registers a callback for invalidations received over pub/sub.
func (c *BalanceCache) OnInvalidation(l InvalidationListener) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenersMu.Unlock()
}

func (c *BalanceCache) count(fn func()) {
	c.stats.Lock()
	fn()
	c.stats.Unlock()
}

// Stats is a snapshot of cache counters.
type Stats struct {
	LocalEntries  int   `json:"localEntries"`
	LocalHits     int64 `json:"localHits"`
	RedisHits     int64 `json:"redisHits"`
	Misses        int64 `json:"misses"`
	Invalidations int64 `json:"invalidations"`
}

func (c *BalanceCache) Stats() Stats {
	c.mu.RLock()
	n := len(c.local)
	c.mu.RUnlock()

	c.stats.Lock()
	defer c.stats.Unlock()
	return Stats{
		LocalEntries:  n,
		LocalHits:     c.stats.localHits,
		RedisHits:     c.stats.redisHits,
		Misses:        c.stats.misses,
		Invalidations: c.stats.invalidations,
	}
}

// Ping checks the Redis connection for readiness checks.
func (c *BalanceCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
