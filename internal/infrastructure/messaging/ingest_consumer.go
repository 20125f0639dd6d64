package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/ingest"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// LevelApplier applies one external stock level.
type LevelApplier interface {
	Apply(ctx context.Context, level ingest.StockLevel) (*ledger.Movement, error)
}

// IngestConsumer feeds ERP stock levels into the ingestor.
type IngestConsumer struct {
	consumer Consumer
	applier  LevelApplier
	retries  int
	backoff  time.Duration
}

// NewIngestConsumer creates a consumer. Transient failures are retried in place;
// redeliveries are absorbed by the ingestor's idempotency keys.
func NewIngestConsumer(c Consumer, applier LevelApplier) *IngestConsumer {
	return &IngestConsumer{consumer: c, applier: applier, retries: 3, backoff: 500 * time.Millisecond}
}

// Run reads until ctx is cancelled.
func (c *IngestConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "read stock level", "error", err)
			if !sleep(ctx, c.backoff) {
				return nil
			}
			continue
		}
		c.Handle(ctx, *msg)
	}
}

// Handle processes one message. Malformed and rejected levels are logged and dropped.
func (c *IngestConsumer) Handle(ctx context.Context, msg kafka.Message) {
	ctx = extractTraceContext(ctx, msg.Headers)

	var level ingest.StockLevel
	if err := json.Unmarshal(msg.Value, &level); err != nil {
		logger.Warn(ctx, "malformed stock level dropped",
			"partition", msg.Partition, "offset", msg.Offset, "error", err)
		return
	}

	for attempt := 0; ; attempt++ {
		m, err := c.applier.Apply(ctx, level)
		if err == nil {
			if m != nil {
				logger.Info(ctx, "stock level applied",
					"source", level.Source, "external_id", level.ExternalID, "movement_id", m.ID)
			}
			return
		}
		if permanent(err) || attempt >= c.retries {
			logger.Error(ctx, "stock level rejected",
				"source", level.Source, "external_id", level.ExternalID, "attempts", attempt+1, "error", err)
			return
		}
		if !sleep(ctx, c.backoff*time.Duration(attempt+1)) {
			return
		}
	}
}

// permanent reports domain rejections that a retry cannot fix.
func permanent(err error) bool {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code != apperror.CodeConcurrentModification && appErr.Code != apperror.CodeInternal
}

func extractTraceContext(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
