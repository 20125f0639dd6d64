package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/outbox"
	pkgnumerator "stockledger/pkg/numerator"
)

func nowUTC() time.Time { return time.Now().UTC() }

// AuditSink implements audit.Sink.
type AuditSink struct{ s *Store }

// Audit returns the audit sink.
func (s *Store) Audit() *AuditSink { return &AuditSink{s: s} }

var (
	_ audit.Sink   = (*AuditSink)(nil)
	_ audit.Reader = (*AuditSink)(nil)
)

func (a *AuditSink) Write(ctx context.Context, e audit.Entry) error {
	return a.s.write(ctx, func(d *state) error {
		d.audit = append(d.audit, e)
		return nil
	})
}

// Entries returns committed audit entries of an entity, oldest first.
func (a *AuditSink) Entries(ctx context.Context, entityID id.ID) []audit.Entry {
	var out []audit.Entry
	a.s.read(ctx, func(d *state) {
		for _, e := range d.audit {
			if e.EntityID == entityID {
				out = append(out, e)
			}
		}
	})
	return out
}

// History returns committed entries of an entity, newest first.
func (a *AuditSink) History(ctx context.Context, tenantID id.ID, entityType string, entityID id.ID, limit int) ([]audit.LogEntry, error) {
	var out []audit.LogEntry
	var err error
	a.s.read(ctx, func(d *state) {
		for i := len(d.audit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			e := d.audit[i]
			if e.TenantID != tenantID || e.EntityType != entityType || e.EntityID != entityID {
				continue
			}
			var changes, meta []byte
			if changes, err = json.Marshal(map[string]any{"before": e.Before, "after": e.After}); err != nil {
				return
			}
			if len(e.Metadata) > 0 {
				if meta, err = json.Marshal(e.Metadata); err != nil {
					return
				}
			}
			out = append(out, audit.LogEntry{
				ID:         e.ID,
				TenantID:   e.TenantID,
				EntityType: e.EntityType,
				EntityID:   e.EntityID,
				Action:     e.Action,
				UserID:     e.UserID,
				Changes:    changes,
				Metadata:   meta,
				CreatedAt:  e.CreatedAt,
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("encode audit entry: %w", err)
	}
	return out, nil
}

// OutboxStore implements outbox.Store.
type OutboxStore struct{ s *Store }

// Outbox returns the outbox store.
func (s *Store) Outbox() *OutboxStore { return &OutboxStore{s: s} }

var _ outbox.Store = (*OutboxStore)(nil)

type outboxState struct {
	nextAttempt time.Time
	failed      bool
}

func (o *OutboxStore) Enqueue(ctx context.Context, msgs ...outbox.Message) error {
	return o.s.write(ctx, func(d *state) error {
		d.outbox = append(d.outbox, msgs...)
		return nil
	})
}

func (o *OutboxStore) ClaimPending(ctx context.Context, limit int, now time.Time) ([]outbox.Message, error) {
	var out []outbox.Message
	o.s.read(ctx, func(d *state) {
		for _, m := range d.outbox {
			if d.published[m.ID] {
				continue
			}
			if st, ok := d.outboxRetries[m.ID]; ok && (st.failed || st.nextAttempt.After(now)) {
				continue
			}
			out = append(out, m)
			if limit > 0 && len(out) == limit {
				return
			}
		}
	})
	return out, nil
}

func (o *OutboxStore) MarkPublished(ctx context.Context, msgID id.ID, _ time.Time) error {
	return o.s.write(ctx, func(d *state) error {
		d.published[msgID] = true
		return nil
	})
}

func (o *OutboxStore) MarkFailed(ctx context.Context, msgID id.ID, _ string, nextAttempt time.Time, maxRetries int) error {
	return o.s.write(ctx, func(d *state) error {
		i := slices.IndexFunc(d.outbox, func(m outbox.Message) bool { return m.ID == msgID })
		if i < 0 {
			return fmt.Errorf("outbox message %s not found", msgID)
		}
		d.outbox[i].RetryCount++
		d.outboxRetries[msgID] = outboxState{nextAttempt: nextAttempt, failed: d.outbox[i].RetryCount >= maxRetries}
		return nil
	})
}

// Messages returns committed outbox messages, oldest first.
func (o *OutboxStore) Messages(ctx context.Context) []outbox.Message {
	var out []outbox.Message
	o.s.read(ctx, func(d *state) { out = slices.Clone(d.outbox) })
	return out
}

// IdempotencyStore implements idempotency.Store.
type IdempotencyStore struct{ s *Store }

// Idempotency returns the idempotency store.
func (s *Store) Idempotency() *IdempotencyStore { return &IdempotencyStore{s: s} }

var _ idempotency.Store = (*IdempotencyStore)(nil)

func idemKey(tenantID id.ID, key string) string { return tenantID.String() + "/" + key }

func (i *IdempotencyStore) Claim(ctx context.Context, rec idempotency.Record) (*idempotency.Record, bool, error) {
	var (
		existing *idempotency.Record
		claimed  bool
	)
	err := i.s.write(ctx, func(d *state) error {
		k := idemKey(rec.TenantID, rec.Key)
		if cur, ok := d.idempotency[k]; ok && cur.ExpiresAt.After(rec.CreatedAt) {
			existing = &cur
			return nil
		}
		d.idempotency[k] = rec
		claimed = true
		return nil
	})
	return existing, claimed, err
}

func (i *IdempotencyStore) Complete(ctx context.Context, tenantID id.ID, key string, result json.RawMessage) error {
	return i.s.write(ctx, func(d *state) error {
		k := idemKey(tenantID, key)
		rec, ok := d.idempotency[k]
		if !ok {
			return fmt.Errorf("idempotency key %q not claimed", key)
		}
		rec.Result = slices.Clone(result)
		d.idempotency[k] = rec
		return nil
	})
}

func (i *IdempotencyStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := i.s.write(ctx, func(d *state) error {
		for k, rec := range d.idempotency {
			if !rec.ExpiresAt.After(now) {
				delete(d.idempotency, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// Numerator implements numerator.Generator with gapless per-tenant counters.
type Numerator struct{ s *Store }

// Numerator returns the document number generator.
func (s *Store) Numerator() *Numerator { return &Numerator{s: s} }

var _ numerator.Generator = (*Numerator)(nil)

func (n *Numerator) Next(ctx context.Context, tenantID id.ID, cfg numerator.Config, period time.Time) (string, error) {
	var num int64
	err := n.s.write(ctx, func(d *state) error {
		k := tenantID.String() + "/" + pkgnumerator.Key(cfg, period)
		d.sequences[k]++
		num = d.sequences[k]
		return nil
	})
	if err != nil {
		return "", err
	}
	return pkgnumerator.Format(cfg, period, num), nil
}
