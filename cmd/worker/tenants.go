package main

import (
	"context"
	"sync"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/pkg/logger"
)

// ReservationExpirer expires due reservations of one tenant.
type ReservationExpirer interface {
	ExpireDue(ctx context.Context, tenantID id.ID, limit int) (int, error)
}

// ExpirySweeper keeps one sweep loop per active tenant. The tenant set is
// refreshed every minute; loops of tenants that left the active set are stopped.
type ExpirySweeper struct {
	registry tenant.Registry
	expirer  ReservationExpirer
	interval time.Duration
	batch    int

	refreshEvery time.Duration
}

func NewExpirySweeper(registry tenant.Registry, expirer ReservationExpirer, interval time.Duration, batch int) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 500
	}
	return &ExpirySweeper{
		registry:     registry,
		expirer:      expirer,
		interval:     interval,
		batch:        batch,
		refreshEvery: time.Minute,
	}
}

// Run blocks until ctx is cancelled and every tenant loop has returned.
func (w *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.refreshEvery)
	defer ticker.Stop()

	var (
		wg      sync.WaitGroup
		running = make(map[id.ID]context.CancelFunc)
	)

	w.refresh(ctx, &wg, running)
	for {
		select {
		case <-ctx.Done():
			for _, cancel := range running {
				cancel()
			}
			wg.Wait()
			return
		case <-ticker.C:
			w.refresh(ctx, &wg, running)
		}
	}
}

func (w *ExpirySweeper) refresh(ctx context.Context, wg *sync.WaitGroup, running map[id.ID]context.CancelFunc) {
	tenants, err := w.registry.ListActive(ctx)
	if err != nil {
		logger.Error(ctx, "failed to list active tenants", "error", err)
		return
	}

	active := make(map[id.ID]*tenant.Tenant, len(tenants))
	for _, t := range tenants {
		active[t.ID] = t
	}

	for tenantID, cancel := range running {
		if _, ok := active[tenantID]; !ok {
			cancel()
			delete(running, tenantID)
			logger.Info(ctx, "stopped expiry sweep for inactive tenant", "tenant_id", tenantID)
		}
	}

	for _, t := range tenants {
		if _, ok := running[t.ID]; ok {
			continue
		}
		tctx, cancel := context.WithCancel(ctx)
		running[t.ID] = cancel

		wg.Add(1)
		go func(t *tenant.Tenant) {
			defer wg.Done()
			w.sweepTenant(tctx, t)
		}(t)
		logger.Info(ctx, "started expiry sweep for tenant", "tenant_id", t.ID, "slug", t.Slug)
	}
}

func (w *ExpirySweeper) sweepTenant(ctx context.Context, t *tenant.Tenant) {
	ctx = tenant.WithTenant(ctx, t)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.SweepOnce(ctx, t.ID)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce expires due reservations of a tenant until a batch comes back short.
func (w *ExpirySweeper) SweepOnce(ctx context.Context, tenantID id.ID) int {
	total := 0
	for ctx.Err() == nil {
		n, err := w.expirer.ExpireDue(ctx, tenantID, w.batch)
		total += n
		if err != nil {
			logger.Error(ctx, "reservation expiry sweep failed", "error", err)
			break
		}
		if n < w.batch {
			break
		}
	}
	if total > 0 {
		logger.Info(ctx, "reservations expired", "count", total)
	}
	return total
}
