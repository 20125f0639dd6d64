// Package numerator implements document numbering over the sequences table.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockledger/internal/core/id"
	corenumerator "stockledger/internal/core/numerator"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/numerator"
)

type cachedRange struct {
	current int64
	max     int64
}

// Options tune the generator.
type Options struct {
	Strategy corenumerator.Strategy
	// RangeSize is the number of values reserved per round trip with StrategyCached (default 50).
	RangeSize int64
}

// Service hands out document numbers. Sequences are keyed by tenant and
// numerator.Key, so tenants never share a counter.
type Service struct {
	txManager *postgres.TxManager
	opts      Options

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numbering service.
func New(txManager *postgres.TxManager, opts Options) *Service {
	if opts.RangeSize <= 0 {
		opts.RangeSize = 50
	}
	return &Service{txManager: txManager, opts: opts, ranges: make(map[string]*cachedRange)}
}

// Next returns the next formatted number, e.g. TR-2026-00001.
func (s *Service) Next(ctx context.Context, tenantID id.ID, cfg corenumerator.Config, period time.Time) (string, error) {
	key := numerator.Key(cfg, period)

	var (
		num int64
		err error
	)
	switch s.opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, tenantID, key)
	default:
		num, err = s.nextStrict(ctx, tenantID, key)
	}
	if err != nil {
		return "", err
	}
	return numerator.Format(cfg, period, num), nil
}

// nextStrict bumps the sequence row in the caller's transaction. The row stays locked
// until commit, so numbers of one key are handed out in commit order without gaps.
func (s *Service) nextStrict(ctx context.Context, tenantID id.ID, key string) (int64, error) {
	var num int64
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sequences (tenant_id, key, current_val)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, key) DO UPDATE SET current_val = sequences.current_val + 1
		RETURNING current_val
	`, tenantID, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next %s: %w", key, err)
	}
	return num, nil
}

// nextCached serves numbers from an in-memory range, reserving a new range when exhausted.
// The reservation runs outside the caller's transaction so other writers are not blocked.
func (s *Service) nextCached(ctx context.Context, tenantID id.ID, key string) (int64, error) {
	cacheKey := tenantID.String() + ":" + key

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[cacheKey]
	if !ok {
		rng = &cachedRange{}
		s.ranges[cacheKey] = rng
	}

	if rng.current >= rng.max {
		var newMax int64
		err := s.txManager.RunInTransaction(s.txManager.Detach(ctx),
			func(ctx context.Context) error {
				return s.txManager.GetQuerier(ctx).QueryRow(ctx, `
					INSERT INTO sequences (tenant_id, key, current_val)
					VALUES ($1, $2, $3)
					ON CONFLICT (tenant_id, key) DO UPDATE SET current_val = sequences.current_val + $3
					RETURNING current_val
				`, tenantID, key, s.opts.RangeSize).Scan(&newMax)
			})
		if err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}
		// The range is (newMax - size, newMax].
		rng.current = newMax - s.opts.RangeSize
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}
