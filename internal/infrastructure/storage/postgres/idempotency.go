package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/idempotency"
)

// IdempotencyStore implements idempotency.Store over the idempotency_keys table.
// Keys are claimed inside the caller's transaction, so a rolled back operation frees its key.
type IdempotencyStore struct {
	txManager *TxManager
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates an idempotency store.
func NewIdempotencyStore(txManager *TxManager) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager}
}

// Claim inserts the key. A concurrent claim of the same key blocks on the unique index
// until the first transaction ends. An expired key is taken over.
func (s *IdempotencyStore) Claim(ctx context.Context, rec idempotency.Record) (*idempotency.Record, bool, error) {
	q := s.txManager.GetQuerier(ctx)

	tag, err := q.Exec(ctx, `
		INSERT INTO idempotency_keys (tenant_id, key, operation, request_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, key) DO NOTHING
	`, rec.TenantID, rec.Key, rec.Operation, rec.RequestHash, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, true, nil
	}

	var existing idempotency.Record
	err = pgxscan.Get(ctx, q, &existing, `
		SELECT tenant_id, key, operation, request_hash, result, created_at, expires_at
		FROM idempotency_keys
		WHERE tenant_id = $1 AND key = $2
		FOR UPDATE
	`, rec.TenantID, rec.Key)
	if err != nil {
		return nil, false, fmt.Errorf("load idempotency key: %w", err)
	}

	if existing.ExpiresAt.Before(rec.CreatedAt) {
		_, err := q.Exec(ctx, `
			UPDATE idempotency_keys
			SET operation = $3, request_hash = $4, result = NULL, created_at = $5, expires_at = $6
			WHERE tenant_id = $1 AND key = $2
		`, rec.TenantID, rec.Key, rec.Operation, rec.RequestHash, rec.CreatedAt, rec.ExpiresAt)
		if err != nil {
			return nil, false, fmt.Errorf("take over expired idempotency key: %w", err)
		}
		return nil, true, nil
	}
	return &existing, false, nil
}

// Complete stores the serialized result of a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, tenantID id.ID, key string, result json.RawMessage) error {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE idempotency_keys SET result = $3 WHERE tenant_id = $1 AND key = $2
	`, tenantID, key, []byte(result))
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete idempotency key %q: not claimed", key)
	}
	return nil
}

// DeleteExpired removes keys past their expiry.
func (s *IdempotencyStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM idempotency_keys WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
