package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// memoryMetricExporter keeps exported metrics in memory.
type memoryMetricExporter struct {
	mu       sync.Mutex
	exported []metricdata.ResourceMetrics
}

func (e *memoryMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *memoryMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *memoryMetricExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exported = append(e.exported, *rm)
	return nil
}

func (e *memoryMetricExporter) ForceFlush(context.Context) error { return nil }
func (e *memoryMetricExporter) Shutdown(context.Context) error   { return nil }

func (e *memoryMetricExporter) metricNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var names []string
	for _, rm := range e.exported {
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				names = append(names, m.Name)
			}
		}
	}
	return names
}

// restoreGlobals puts the global providers back after New replaces them.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestNew_DisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Nil(t, tel.LoggerProvider())
	assert.Equal(t, Health{State: StateOff}, tel.Health())

	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, tel.Health().State)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := &Config{Enabled: true}

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_WithExporters(t *testing.T) {
	restoreGlobals(t)
	ctx := context.Background()
	spans := tracetest.NewInMemoryExporter()
	metrics := &memoryMetricExporter{}

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	tel, err := New(ctx, cfg, WithTraceExporter(spans), WithMetricExporter(metrics))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.NotNil(t, tel.LoggerProvider())

	_, span := otel.Tracer("foldd/test").Start(ctx, "folding.reconcile")
	span.End()

	counter, err := tel.Meter("foldd/test").Int64Counter("folding.reconcile.total")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	require.NoError(t, tel.ForceFlush(ctx))

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "folding.reconcile", got[0].Name)
	assert.Contains(t, metrics.metricNames(), "folding.reconcile.total")

	var serviceName string
	for _, kv := range got[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			serviceName = kv.Value.AsString()
		}
	}
	assert.Equal(t, "foldd", serviceName)

	assert.Equal(t, Health{State: StateOK}, tel.Health())
	require.NoError(t, tel.Shutdown(ctx))
	assert.Equal(t, StateStopped, tel.Health().State)
	assert.False(t, tel.IsEnabled())
}

func TestNew_MetricsDisabled(t *testing.T) {
	restoreGlobals(t)
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics.Enabled = false

	tel, err := New(context.Background(), cfg, WithTraceExporter(tracetest.NewInMemoryExporter()))
	require.NoError(t, err)
	assert.Nil(t, tel.metrics)
	assert.NotNil(t, tel.traces)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.Equal(t, Health{State: StateOff}, tel.Health())
}

func TestTelemetry_Degraded(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	tel := &Telemetry{config: cfg}
	tel.problem("traces", errors.New("dial"))

	health := tel.Health()
	assert.Equal(t, StateDegraded, health.State)
	assert.Equal(t, []string{"traces: dial"}, health.Problems)
	assert.True(t, tel.IsEnabled())
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.5).Description(), "TraceIDRatioBased")
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "host:4318", stripScheme("https://host:4318"))
	assert.Equal(t, "host:4318", stripScheme("http://host:4318"))
	assert.Equal(t, "host:4317", stripScheme("host:4317"))
}

func TestTestTelemetry(t *testing.T) {
	ctx := context.Background()
	tt := NewTestTelemetry()
	assert.True(t, tt.IsEnabled())

	_, span := tt.Tracer("test").Start(ctx, "folding.initialize")
	span.SetAttributes(attribute.Int("folding.batch.insertions", 3))
	span.End()
	_, span = tt.Tracer("test").Start(ctx, "folding.reconcile")
	span.End()

	assert.Equal(t, []string{"folding.initialize", "folding.reconcile"}, tt.SpanNames())
	got, ok := tt.Span("folding.initialize")
	require.True(t, ok)
	assert.Contains(t, got.Attributes(), attribute.Int("folding.batch.insertions", 3))
	_, ok = tt.Span("missing")
	assert.False(t, ok)

	ops, err := tt.Meter("test").Int64Counter("folding.batch.updates")
	require.NoError(t, err)
	ops.Add(ctx, 2, metric.WithAttributes(attribute.String("op", "reconcile")))
	ops.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "initialize")))
	durations, err := tt.Meter("test").Float64Histogram("folding.reconcile.duration.seconds")
	require.NoError(t, err)
	durations.Record(ctx, 0.01)

	total, ok := tt.Int64Sum(t, "folding.batch.updates")
	require.True(t, ok)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, map[string]int64{"reconcile": 2, "initialize": 1}, tt.Int64SumBy(t, "folding.batch.updates", "op"))
	assert.Equal(t, uint64(1), tt.HistogramCount(t, "folding.reconcile.duration.seconds"))
	assert.ElementsMatch(t, []string{"folding.batch.updates", "folding.reconcile.duration.seconds"}, tt.MetricNames(t))

	_, ok = tt.Int64Sum(t, "missing")
	assert.False(t, ok)
}

func TestTestTelemetry_Install(t *testing.T) {
	before := otel.GetTracerProvider()
	tt := NewTestTelemetry()

	t.Run("installed", func(t *testing.T) {
		tt.Install(t)
		_, span := otel.Tracer("foldd/test").Start(context.Background(), "folding.reconcile")
		span.End()
	})

	assert.Equal(t, []string{"folding.reconcile"}, tt.SpanNames())
	assert.Equal(t, before, otel.GetTracerProvider())
}
