package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ingest"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/outbox"
)

type fakeProducer struct {
	msgs []kafka.Message
	err  error
}

func (p *fakeProducer) WriteMessage(_ context.Context, msg kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type fakeApplier struct {
	calls int
	errs  []error
	got   []ingest.StockLevel
}

func (a *fakeApplier) Apply(_ context.Context, level ingest.StockLevel) (*ledger.Movement, error) {
	a.calls++
	a.got = append(a.got, level)
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		return nil, err
	}
	return &ledger.Movement{ID: id.New()}, nil
}

func TestOutboxPublisher_KeysByAggregate(t *testing.T) {
	p := &fakeProducer{}
	tenant, agg := id.New(), id.New()
	msg, err := outbox.NewMessage(tenant, "stock_movement", agg, outbox.EventMovementRecorded, map[string]string{"a": "b"})
	require.NoError(t, err)

	require.NoError(t, NewOutboxPublisher(p).Publish(context.Background(), msg))

	require.Len(t, p.msgs, 1)
	assert.Equal(t, agg.String(), string(p.msgs[0].Key))
	assert.Contains(t, p.msgs[0].Headers, kafka.Header{Key: HeaderEventType, Value: []byte(outbox.EventMovementRecorded)})

	var back outbox.Message
	require.NoError(t, json.Unmarshal(p.msgs[0].Value, &back))
	assert.Equal(t, msg.ID, back.ID)
	assert.JSONEq(t, `{"a":"b"}`, string(back.Payload))
}

func TestOutboxPublisher_WrapsWriteError(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	msg, err := outbox.NewMessage(id.New(), "document", id.New(), outbox.EventDocumentCompleted, nil)
	require.NoError(t, err)

	err = NewOutboxPublisher(p).Publish(context.Background(), msg)
	assert.ErrorContains(t, err, "broker down")
}

func levelMessage(t *testing.T) kafka.Message {
	t.Helper()
	value, err := json.Marshal(ingest.StockLevel{
		TenantID: id.New(), Source: "sap", ExternalID: "L-1",
		ProductID: id.New(), WarehouseID: id.New(), Quantity: types.NewQuantity(3),
	})
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func newConsumer(a *fakeApplier) *IngestConsumer {
	c := NewIngestConsumer(nil, a)
	c.backoff = time.Millisecond
	return c
}

func TestHandle_AppliesLevel(t *testing.T) {
	a := &fakeApplier{}
	newConsumer(a).Handle(context.Background(), levelMessage(t))

	require.Equal(t, 1, a.calls)
	assert.Equal(t, "L-1", a.got[0].ExternalID)
	assert.Equal(t, types.NewQuantity(3), a.got[0].Quantity)
}

func TestHandle_DropsMalformed(t *testing.T) {
	a := &fakeApplier{}
	newConsumer(a).Handle(context.Background(), kafka.Message{Value: []byte("{")})
	assert.Zero(t, a.calls)
}

func TestHandle_RetriesTransientFailures(t *testing.T) {
	a := &fakeApplier{errs: []error{
		apperror.NewConcurrentModification("balance", id.New()),
		errors.New("connection reset"),
	}}
	newConsumer(a).Handle(context.Background(), levelMessage(t))
	assert.Equal(t, 3, a.calls)
}

func TestHandle_DoesNotRetryRejections(t *testing.T) {
	a := &fakeApplier{errs: []error{apperror.NewValidation("bad level")}}
	newConsumer(a).Handle(context.Background(), levelMessage(t))
	assert.Equal(t, 1, a.calls)
}

func TestHandle_GivesUpAfterRetries(t *testing.T) {
	boom := errors.New("db down")
	a := &fakeApplier{errs: []error{boom, boom, boom, boom, boom}}
	newConsumer(a).Handle(context.Background(), levelMessage(t))
	assert.Equal(t, 4, a.calls)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, TopicMovements, cfg.MovementsTopic)
	assert.Equal(t, TopicStockLevels, cfg.LevelsTopic)
	assert.NotEmpty(t, cfg.GroupID)
}
