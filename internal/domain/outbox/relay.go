package outbox

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

// RelayConfig tunes the relay.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
}

// Relay moves committed outbox messages to the broker.
type Relay struct {
	store     Store
	publisher Publisher
	txm       tx.Manager
	cfg       RelayConfig
}

// NewRelay creates a relay.
func NewRelay(store Store, publisher Publisher, txm tx.Manager, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &Relay{store: store, publisher: publisher, txm: txm, cfg: cfg}
}

// ProcessBatch publishes one batch and returns how many messages were delivered.
// A failed message is retried with linear backoff and does not block the rest.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		msgs, err := r.store.ClaimPending(ctx, r.cfg.BatchSize, now)
		if err != nil {
			return fmt.Errorf("claim outbox messages: %w", err)
		}

		for _, msg := range msgs {
			if err := r.publisher.Publish(ctx, msg); err != nil {
				next := now.Add(time.Duration(msg.RetryCount+1) * time.Minute)
				logger.Warn(ctx, "outbox publish failed",
					"message_id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount+1, "error", err)
				if err := r.store.MarkFailed(ctx, msg.ID, err.Error(), next, r.cfg.MaxRetries); err != nil {
					return err
				}
				continue
			}
			if err := r.store.MarkPublished(ctx, msg.ID, time.Now().UTC()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}
