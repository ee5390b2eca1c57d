package logger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kart-io/sentinel-cluster/pkg/errors"
)

func TestWithFields(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithProjectID(ctx, "proj")
	ctx = WithFields(ctx, "phase", "summaries", 42, "ignored", "dangling")
	ctx = WithFields(ctx, "phase", "saving_clusters")

	assert.Equal(t, []interface{}{
		"run_id", "run-1",
		"project_id", "proj",
		"phase", "saving_clusters",
	}, GetContextFields(ctx))
}

func TestWithFields_ParentUnchanged(t *testing.T) {
	parent := WithRunID(context.Background(), "run-1")
	_ = WithFields(parent, "phase", "x")
	assert.Len(t, GetContextFields(parent), 2)
}

func TestWithFields_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetContextFields(WithRunID(ctx, "")))
	assert.Nil(t, GetContextFields(WithProjectID(ctx, "")))
	assert.Nil(t, GetContextFields(WithFields(ctx, "only-key")))
}

func TestWithTraceFields(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	f := GetContextFields(WithTraceFields(ctx))
	require.Len(t, f, 4)
	assert.Equal(t, "trace_id", f[0])
	assert.Equal(t, span.SpanContext().TraceID().String(), f[1])
	assert.Equal(t, span.SpanContext().SpanID().String(), f[3])

	// 无 span 时不添加字段
	assert.Nil(t, GetContextFields(WithTraceFields(context.Background())))
}

func TestUnwrapError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := fmt.Errorf("save clusters: %w", errors.ErrStoreFailure.WithCause(cause))

	chain := UnwrapError(err)
	require.Len(t, chain, 3)
	assert.Contains(t, chain[1], errors.ErrStoreFailure.MessageEN)
	assert.Equal(t, "connection refused", chain[2])

	assert.Nil(t, UnwrapError(nil))
}

func TestLogHelpers(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	assert.NotPanics(t, func() {
		LogInfo(ctx, "info", "k", 1)
		LogDebug(ctx, "debug")
		LogWarn(ctx, "warn")
		LogErrorChain(ctx, "failed", fmt.Errorf("outer: %w", fmt.Errorf("inner")), "status", "summaries")
	})
}
