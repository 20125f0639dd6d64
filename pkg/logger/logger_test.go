package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"stockledger/internal/core/actor"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestFields_RequestWithTenantAndUser(t *testing.T) {
	tenantID := id.New()
	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = tenant.WithTenant(ctx, &tenant.Tenant{ID: tenantID, Slug: "acme"})
	ctx = actor.WithActor(ctx, actor.New(tenantID, "alice"))

	assert.Equal(t, []any{
		"trace_id", "t-1",
		"request_id", "r-1",
		"tenant_id", tenantID.String(),
		"tenant", "acme",
		"user_id", "alice",
	}, Fields(ctx))
}

func TestFields_WorkerActorWithoutResolvedTenant(t *testing.T) {
	tenantID := id.New()
	ctx := actor.WithActor(context.Background(), actor.Worker(tenantID, "reservation-expiry"))

	assert.Equal(t, []any{
		"tenant_id", tenantID.String(),
		"job", "reservation-expiry",
	}, Fields(ctx))
}

func TestFields_Empty(t *testing.T) {
	assert.Empty(t, Fields(context.Background()))
}

func TestFromContext_AttachesFieldsToStoredLogger(t *testing.T) {
	l, logs := observed()
	tenantID := id.New()
	ctx := WithLogger(context.Background(), l.WithComponent("worker"))
	ctx = tenant.WithTenant(ctx, &tenant.Tenant{ID: tenantID, Slug: "acme"})

	Info(ctx, "reservations expired", "count", 3)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "worker", fields["component"])
	assert.Equal(t, tenantID.String(), fields["tenant_id"])
	assert.Equal(t, "acme", fields["tenant"])
	assert.EqualValues(t, 3, fields["count"])
}

func TestWithContext_NoFieldsKeepsLogger(t *testing.T) {
	l, _ := observed()
	assert.Same(t, l, l.WithContext(context.Background()))
}
