package folding

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InstrumentationName is the name used for OTEL instrumentation.
	InstrumentationName = "github.com/fyrsmithlabs/foldd/internal/folding"
)

// Metrics provides OpenTelemetry metrics for the folding package.
type Metrics struct {
	// Counters
	reconcileTotal  metric.Int64Counter
	initializeTotal metric.Int64Counter
	removalsTotal   metric.Int64Counter
	insertionsTotal metric.Int64Counter
	updatesTotal    metric.Int64Counter
	repairTotal     metric.Int64Counter
	mappingFailures metric.Int64Counter
	sinkFailures    metric.Int64Counter

	// Gauges (using UpDownCounter for gauge semantics)
	visibleRegions metric.Int64UpDownCounter

	// Histograms
	duration metric.Float64Histogram

	initialized bool
}

// NewMetrics creates a new Metrics instance with the provided meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.reconcileTotal, "folding.reconcile.total", "Total number of reconcile passes", "{pass}"},
		{&m.initializeTotal, "folding.initialize.total", "Total number of initialize passes", "{pass}"},
		{&m.removalsTotal, "folding.batch.removals", "Regions removed through the sink", "{region}"},
		{&m.insertionsTotal, "folding.batch.insertions", "Regions inserted through the sink", "{region}"},
		{&m.updatesTotal, "folding.batch.updates", "Regions moved through the sink", "{region}"},
		{&m.repairTotal, "folding.repair.total", "Deleted regions rescued by start-offset repair", "{region}"},
		{&m.mappingFailures, "folding.mapping.failures", "Nodes skipped because their lines did not map onto the buffer", "{node}"},
		{&m.sinkFailures, "folding.sink.failures", "Batches dropped because the sink failed", "{batch}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.visibleRegions, err = meter.Int64UpDownCounter(
		"folding.regions.visible",
		metric.WithDescription("Number of fold regions currently on screen"),
		metric.WithUnit("{region}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"folding.reconcile.duration.seconds",
		metric.WithDescription("Duration of initialize and reconcile passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordBatch records one completed pass. op is "initialize" or "reconcile".
func (m *Metrics) RecordBatch(ctx context.Context, op string, batch Batch, repaired int, duration time.Duration) {
	if m == nil || !m.initialized {
		return
	}
	attrs := metric.WithAttributes(attribute.String("op", op))
	switch op {
	case "initialize":
		m.initializeTotal.Add(ctx, 1, attrs)
	default:
		m.reconcileTotal.Add(ctx, 1, attrs)
	}
	m.removalsTotal.Add(ctx, int64(len(batch.Removals)), attrs)
	m.insertionsTotal.Add(ctx, int64(len(batch.Insertions)), attrs)
	m.updatesTotal.Add(ctx, int64(len(batch.Updates)), attrs)
	if repaired > 0 {
		m.repairTotal.Add(ctx, int64(repaired), attrs)
	}
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMappingFailures records nodes skipped during a compute.
func (m *Metrics) RecordMappingFailures(ctx context.Context, count int) {
	if m == nil || !m.initialized {
		return
	}
	m.mappingFailures.Add(ctx, int64(count))
}

// RecordSinkFailure records a dropped batch.
func (m *Metrics) RecordSinkFailure(ctx context.Context, op string) {
	if m == nil || !m.initialized {
		return
	}
	m.sinkFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordVisible adjusts the visible region gauge.
func (m *Metrics) RecordVisible(ctx context.Context, delta int64) {
	if m == nil || !m.initialized || delta == 0 {
		return
	}
	m.visibleRegions.Add(ctx, delta)
}

// Tracer returns a tracer for the folding package.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a new span for a folding pass.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err, trace.WithAttributes(attrs...))
	}
}

// SetSpanStatus sets the status on the current span.
func SetSpanStatus(ctx context.Context, code codes.Code, description string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetStatus(code, description)
	}
}
