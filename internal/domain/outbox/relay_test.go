package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/outbox"
	"stockledger/internal/infrastructure/storage/memory/memtest"
)

type recorder struct {
	mu     sync.Mutex
	fail   map[id.ID]bool
	events []outbox.Message
}

func (r *recorder) Publish(_ context.Context, msg outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[msg.ID] {
		return errors.New("broker unavailable")
	}
	r.events = append(r.events, msg)
	return nil
}

func TestRelay_PublishesCommittedMessages(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	f.Receive(t, f.Warehouse1, 5)
	f.Receive(t, f.Warehouse1, 6)

	pub := &recorder{}
	relay := outbox.NewRelay(f.Store.Outbox(), pub, f.Store, outbox.RelayConfig{})

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, m := range pub.events {
		assert.Equal(t, outbox.EventMovementRecorded, m.EventType)
		assert.Equal(t, f.Actor.TenantID, m.TenantID)
	}

	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published messages are not relayed twice")
}

func TestRelay_FailureDoesNotBlockBatch(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	first := f.Receive(t, f.Warehouse1, 5)
	f.Receive(t, f.Warehouse1, 6)

	msgs := f.Store.Outbox().Messages(ctx)
	require.Len(t, msgs, 2)
	require.Equal(t, first.ID, msgs[0].AggregateID)

	pub := &recorder{fail: map[id.ID]bool{msgs[0].ID: true}}
	relay := outbox.NewRelay(f.Store.Outbox(), pub, f.Store, outbox.RelayConfig{MaxRetries: 3})

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.events, 1)
	assert.Equal(t, msgs[1].ID, pub.events[0].ID)

	assert.Equal(t, 1, f.Store.Outbox().Messages(ctx)[0].RetryCount)

	// The failed message backs off and is not due yet.
	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelay_BatchSize(t *testing.T) {
	f := memtest.New(t)
	ctx := context.Background()
	for range 3 {
		f.Receive(t, f.Warehouse1, 1)
	}

	relay := outbox.NewRelay(f.Store.Outbox(), &recorder{}, f.Store, outbox.RelayConfig{BatchSize: 2})
	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
