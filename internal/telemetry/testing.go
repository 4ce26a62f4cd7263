package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry keeps spans and metrics in memory so tests can check what a
// fold pass, an edit or an API request reported.
type TestTelemetry struct {
	*Telemetry

	recorder *tracetest.SpanRecorder
	reader   *sdkmetric.ManualReader
}

// NewTestTelemetry returns enabled telemetry backed by in-memory providers.
// It is not installed globally; see Install.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	return &TestTelemetry{
		Telemetry: &Telemetry{
			config:  cfg,
			traces:  trace.NewTracerProvider(trace.WithSpanProcessor(recorder)),
			metrics: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		},
		recorder: recorder,
		reader:   reader,
	}
}

// Install makes tt the global tracer and meter provider until tb finishes.
// Spans started through otel.Tracer, such as folding.StartSpan, need it.
func (tt *TestTelemetry) Install(tb testing.TB) {
	tb.Helper()
	prevTraces, prevMetrics := otel.GetTracerProvider(), otel.GetMeterProvider()
	otel.SetTracerProvider(tt.traces)
	otel.SetMeterProvider(tt.metrics)
	tb.Cleanup(func() {
		otel.SetTracerProvider(prevTraces)
		otel.SetMeterProvider(prevMetrics)
	})
}

// SpanNames lists ended spans in the order they ended.
func (tt *TestTelemetry) SpanNames() []string {
	ended := tt.recorder.Ended()
	names := make([]string, len(ended))
	for i, s := range ended {
		names[i] = s.Name()
	}
	return names
}

// Span returns the most recently ended span called name.
func (tt *TestTelemetry) Span(name string) (trace.ReadOnlySpan, bool) {
	ended := tt.recorder.Ended()
	for i := len(ended) - 1; i >= 0; i-- {
		if ended[i].Name() == name {
			return ended[i], true
		}
	}
	return nil, false
}

// MetricNames lists every metric recorded so far.
func (tt *TestTelemetry) MetricNames(tb testing.TB) []string {
	tb.Helper()
	var names []string
	for _, m := range tt.collect(tb) {
		names = append(names, m.Name)
	}
	return names
}

// Int64Sum returns the total of the int64 counter name over all attribute
// sets. ok is false when the counter has not been recorded.
func (tt *TestTelemetry) Int64Sum(tb testing.TB, name string) (total int64, ok bool) {
	tb.Helper()
	for _, v := range tt.Int64SumBy(tb, name, "") {
		total += v
		ok = true
	}
	return total, ok
}

// Int64SumBy splits the int64 counter name by the value of attribute key.
// An empty key puts everything under "".
func (tt *TestTelemetry) Int64SumBy(tb testing.TB, name, key string) map[string]int64 {
	tb.Helper()
	out := map[string]int64{}
	for _, m := range tt.collect(tb) {
		if m.Name != name {
			continue
		}
		sum, isSum := m.Data.(metricdata.Sum[int64])
		if !isSum {
			tb.Fatalf("metric %s is %T, not an int64 sum", name, m.Data)
		}
		for _, dp := range sum.DataPoints {
			label := ""
			if key != "" {
				if v, found := dp.Attributes.Value(attribute.Key(key)); found {
					label = v.Emit()
				}
			}
			out[label] += dp.Value
		}
	}
	return out
}

// HistogramCount returns how many values the float64 histogram name holds.
func (tt *TestTelemetry) HistogramCount(tb testing.TB, name string) uint64 {
	tb.Helper()
	var count uint64
	for _, m := range tt.collect(tb) {
		if hist, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == name {
			for _, dp := range hist.DataPoints {
				count += dp.Count
			}
		}
	}
	return count
}

func (tt *TestTelemetry) collect(tb testing.TB) []metricdata.Metrics {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := tt.reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collect metrics: %v", err)
	}
	var out []metricdata.Metrics
	for _, sm := range rm.ScopeMetrics {
		out = append(out, sm.Metrics...)
	}
	return out
}
