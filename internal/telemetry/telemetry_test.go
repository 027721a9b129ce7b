package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "zcore", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	tracer = nil
	enabled = false

	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartOperationSpan(t *testing.T) {
	ctx := context.Background()

	// Without initialization the span is a no-op but must still be usable.
	newCtx, span := StartOperationSpan(ctx, "snapshot", Pool("tank"), Targets(2))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestRecordErrorOnNoOpSpan(t *testing.T) {
	ctx := context.Background()

	// Must not panic without an active span.
	RecordError(ctx, errors.New("engine unavailable"))
	RecordError(ctx, nil)
}

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	assert.Empty(t, SpanID(context.Background()))
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileType(t *testing.T) {
	_, err := parseProfileType("cpu")
	assert.NoError(t, err)

	_, err = parseProfileType("heap_of_trouble")
	assert.Error(t, err)
}
