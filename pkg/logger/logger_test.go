package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "bakery/internal/core/context"
)

func TestFromContext_AddsTraceAndUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := &Logger{zap.New(core).Sugar()}

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "admin-7"})
	ctx = WithLogger(ctx, base)

	Info(ctx, "document confirmed", "stock_in_id", "x")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "admin-7", fields["user_id"])
	assert.Equal(t, "x", fields["stock_in_id"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "loud", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zap.DebugLevel))
}

func TestWithContext_NoIDsKeepsLogger(t *testing.T) {
	l := Nop()
	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestSetDefault_UsedByHelpers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Default()
	SetDefault(&Logger{zap.New(core).Sugar()})
	t.Cleanup(func() { SetDefault(prev) })

	Warn(context.Background(), "reservation mismatch", "ref_id", "o-1")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
}
