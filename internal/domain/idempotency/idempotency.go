// Package idempotency implements the replay contract for caller-supplied keys.
//
// A key is claimed inside the same transaction as the side effects it guards and completed
// with the serialized result before commit. Replaying the key with an identical payload
// returns the stored result; a different payload fails with IdempotencyConflict.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
)

// MaxKeyLength bounds caller-supplied keys.
const MaxKeyLength = 255

// Record is a stored key.
type Record struct {
	TenantID    id.ID           `db:"tenant_id"`
	Key         string          `db:"key"`
	Operation   string          `db:"operation"`
	RequestHash string          `db:"request_hash"`
	Result      json.RawMessage `db:"result"`
	CreatedAt   time.Time       `db:"created_at"`
	ExpiresAt   time.Time       `db:"expires_at"`
}

// Store persists keys through the transaction in ctx.
type Store interface {
	// Claim inserts the key. When the key already exists it returns the existing
	// record and claimed=false. Concurrent claims of one key serialize on the store.
	Claim(ctx context.Context, rec Record) (existing *Record, claimed bool, err error)

	// Complete stores the result of a claimed key.
	Complete(ctx context.Context, tenantID id.ID, key string, result json.RawMessage) error

	// DeleteExpired removes keys past their expiry and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Hash returns the request fingerprint of payload.
func Hash(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal idempotent payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Do runs fn at most once per (tenant, key). It must be called inside a transaction:
// if fn fails the claim rolls back with everything else and the key stays free.
func Do[T any](ctx context.Context, store Store, ttl time.Duration, tenantID id.ID, key, operation string,
	payload any, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T

	if len(key) > MaxKeyLength {
		return zero, false, apperror.NewValidation("idempotency key too long").
			WithDetail("max_length", MaxKeyLength)
	}
	hash, err := Hash(payload)
	if err != nil {
		return zero, false, err
	}

	now := time.Now().UTC()
	existing, claimed, err := store.Claim(ctx, Record{
		TenantID:    tenantID,
		Key:         key,
		Operation:   operation,
		RequestHash: hash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	})
	if err != nil {
		return zero, false, fmt.Errorf("claim idempotency key: %w", err)
	}

	if !claimed {
		if existing.Operation != operation || existing.RequestHash != hash {
			return zero, false, apperror.NewIdempotencyConflict(key)
		}
		var replay T
		if err := json.Unmarshal(existing.Result, &replay); err != nil {
			return zero, false, fmt.Errorf("decode idempotent result: %w", err)
		}
		return replay, true, nil
	}

	result, err := fn(ctx)
	if err != nil {
		return zero, false, err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return zero, false, fmt.Errorf("encode idempotent result: %w", err)
	}
	if err := store.Complete(ctx, tenantID, key, data); err != nil {
		return zero, false, fmt.Errorf("complete idempotency key: %w", err)
	}
	return result, false, nil
}
