package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/outbox"
)

// OutboxStatus represents the state of an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

const insertOutboxSQL = `
	INSERT INTO outbox (id, tenant_id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// OutboxStore implements outbox.Store over the outbox table.
type OutboxStore struct {
	txManager *TxManager
}

var _ outbox.Store = (*OutboxStore)(nil)

// NewOutboxStore creates an outbox store.
func NewOutboxStore(txManager *TxManager) *OutboxStore {
	return &OutboxStore{txManager: txManager}
}

// Enqueue writes messages in the current transaction. MUST be called inside one.
func (s *OutboxStore) Enqueue(ctx context.Context, msgs ...outbox.Message) error {
	t, err := s.txManager.RequireTx(ctx, "outbox enqueue")
	if err != nil {
		return err
	}
	if len(msgs) == 1 {
		m := msgs[0]
		if _, err := t.Exec(ctx, insertOutboxSQL, m.ID, m.TenantID, m.AggregateType, m.AggregateID,
			m.EventType, []byte(m.Payload), OutboxStatusPending, m.CreatedAt); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(insertOutboxSQL, m.ID, m.TenantID, m.AggregateType, m.AggregateID,
			m.EventType, []byte(m.Payload), OutboxStatusPending, m.CreatedAt)
	}
	results := t.SendBatch(ctx, batch)
	defer results.Close()
	for range msgs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}
	return nil
}

// ClaimPending locks due pending rows. Rows locked by another relay are skipped.
func (s *OutboxStore) ClaimPending(ctx context.Context, limit int, now time.Time) ([]outbox.Message, error) {
	if _, err := s.txManager.RequireTx(ctx, "outbox claim"); err != nil {
		return nil, err
	}
	var msgs []outbox.Message
	err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &msgs, `
		SELECT id, tenant_id, aggregate_type, aggregate_id, event_type, payload, created_at, retry_count
		FROM outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox messages: %w", err)
	}
	return msgs, nil
}

// MarkPublished records successful delivery.
func (s *OutboxStore) MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE outbox SET status = $1, published_at = $2 WHERE id = $3
	`, OutboxStatusPublished, at, msgID)
	if err != nil {
		return fmt.Errorf("mark outbox message published: %w", err)
	}
	return nil
}

// MarkFailed increments the retry count and parks the row once it reaches maxRetries.
func (s *OutboxStore) MarkFailed(ctx context.Context, msgID id.ID, reason string, nextAttempt time.Time, maxRetries int) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    next_retry_at = $2,
		    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
		WHERE id = $5
	`, reason, nextAttempt, maxRetries, OutboxStatusFailed, msgID)
	if err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}

// PurgePublished deletes rows published before cutoff.
func (s *OutboxStore) PurgePublished(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge published outbox messages: %w", err)
	}
	return tag.RowsAffected(), nil
}
