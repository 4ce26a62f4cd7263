package folding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestLogger() (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)
	return NewLogger(zap.New(core)), observed
}

func TestNewLogger(t *testing.T) {
	assert.NotNil(t, NewLogger(nil))
	assert.NotNil(t, NewLogger(zap.NewNop()))
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	ctx := context.Background()
	l.Installed(ctx, true)
	l.Uninstalled(ctx, 1)
	l.Initialized(ctx, Batch{}, 0)
	l.BatchApplied(ctx, "reconcile", Batch{}, 0, 0, 0)
	l.BatchDropped(ctx, "reconcile", Batch{}, errors.New("x"))
	l.MappingFailures(ctx, 1, nil)
	l.RegionsRepaired(ctx, 1, 0)
	l.Error(ctx, "msg", errors.New("x"))
	l.Debug(ctx, "msg")
}

func TestLogger_BatchApplied(t *testing.T) {
	l, logs := newTestLogger()

	l.BatchApplied(context.Background(), "reconcile", Batch{
		Removals:   []Handle{1, 2},
		Insertions: []Insertion{{Handle: 3}},
	}, 1, 4, 3*time.Millisecond)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "batch applied", entry.Message)
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
	assert.Equal(t, "folding", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, "reconcile", fields["op"])
	assert.EqualValues(t, 2, fields["removals"])
	assert.EqualValues(t, 1, fields["insertions"])
	assert.EqualValues(t, 0, fields["updates"])
	assert.EqualValues(t, 1, fields["repaired"])
	assert.EqualValues(t, 4, fields["visible"])
}

func TestLogger_BatchDropped(t *testing.T) {
	l, logs := newTestLogger()

	l.BatchDropped(context.Background(), "initialize", Batch{Insertions: make([]Insertion, 2)}, ErrSinkUnavailable)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, ErrSinkUnavailable.Error(), entry.ContextMap()["error"])
}

func TestLogger_TraceFields(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(tracetest.NewInMemoryExporter()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	l, logs := newTestLogger()
	l.Installed(ctx, true)

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, true, fields["enabled"])
}

func TestReconciler_Logging(t *testing.T) {
	l, logs := newTestLogger()
	sink := &recordingSink{}
	r := NewReconciler(lineMapper{lines: 100}, nil, WithLogger(l))
	ctx := context.Background()

	_, err := r.Install(ctx, threeRules(), sink)
	require.NoError(t, err)
	_, err = r.Reconcile(ctx, flatTree(def(1, 0, 2), def(5, 4, 6), def(3, 8, 10)))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("folding installed").Len())
	assert.Equal(t, 1, logs.FilterMessage("regions repaired").Len())
	assert.Equal(t, 1, logs.FilterMessage("folding initialized").Len())
	assert.Equal(t, 1, logs.FilterMessage("batch applied").Len())

	r.Uninstall(ctx)
	assert.Equal(t, 1, logs.FilterMessage("folding uninstalled").Len())
}
