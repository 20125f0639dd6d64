package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
)

type fakeExpirer struct {
	mu      sync.Mutex
	results []int
	err     error
	calls   map[id.ID]int
}

func (f *fakeExpirer) ExpireDue(_ context.Context, tenantID id.ID, _ int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[id.ID]int)
	}
	f.calls[tenantID]++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.results) == 0 {
		return 0, nil
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n, nil
}

func (f *fakeExpirer) callsFor(tenantID id.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tenantID]
}

func TestSweepOnce_DrainsFullBatches(t *testing.T) {
	exp := &fakeExpirer{results: []int{10, 10, 3}}
	w := NewExpirySweeper(tenant.NewStaticRegistry(), exp, time.Minute, 10)

	tenantID := id.New()
	total := w.SweepOnce(context.Background(), tenantID)

	assert.Equal(t, 23, total)
	assert.Equal(t, 3, exp.callsFor(tenantID))
}

func TestSweepOnce_StopsOnError(t *testing.T) {
	exp := &fakeExpirer{err: errors.New("db down")}
	w := NewExpirySweeper(tenant.NewStaticRegistry(), exp, time.Minute, 10)

	tenantID := id.New()
	assert.Zero(t, w.SweepOnce(context.Background(), tenantID))
	assert.Equal(t, 1, exp.callsFor(tenantID))
}

func TestExpirySweeper_SkipsInactiveTenants(t *testing.T) {
	active := &tenant.Tenant{ID: id.New(), Slug: "acme", Status: tenant.StatusActive}
	suspended := &tenant.Tenant{ID: id.New(), Slug: "globex", Status: tenant.StatusSuspended}
	exp := &fakeExpirer{}
	w := NewExpirySweeper(tenant.NewStaticRegistry(active, suspended), exp, time.Hour, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return exp.callsFor(active.ID) > 0 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Zero(t, exp.callsFor(suspended.ID))
}
