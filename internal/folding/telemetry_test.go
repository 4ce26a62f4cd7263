package folding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/foldd/internal/telemetry"
)

func newTestMetrics(t *testing.T) (*Metrics, *telemetry.TestTelemetry) {
	t.Helper()
	tt := telemetry.NewTestTelemetry()
	metrics, err := NewMetrics(tt.Meter(InstrumentationName))
	require.NoError(t, err)
	return metrics, tt
}

func TestNewMetrics(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	assert.True(t, metrics.initialized)
}

func TestNewMetrics_NilMeter(t *testing.T) {
	metrics, err := NewMetrics(nil)
	require.NoError(t, err)
	require.NotNil(t, metrics)
	assert.True(t, metrics.initialized)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordBatch(ctx, "reconcile", Batch{}, 0, time.Millisecond)
	m.RecordMappingFailures(ctx, 1)
	m.RecordSinkFailure(ctx, "reconcile")
	m.RecordVisible(ctx, 1)
}

func TestMetrics_RecordBatch(t *testing.T) {
	metrics, tt := newTestMetrics(t)
	ctx := context.Background()

	metrics.RecordBatch(ctx, "initialize", Batch{Insertions: make([]Insertion, 3)}, 0, time.Millisecond)
	metrics.RecordBatch(ctx, "reconcile", Batch{Removals: []Handle{1}, Updates: make([]Update, 2)}, 1, time.Millisecond)

	for name, want := range map[string]int64{
		"folding.initialize.total": 1,
		"folding.reconcile.total":  1,
		"folding.batch.insertions": 3,
		"folding.batch.removals":   1,
		"folding.batch.updates":    2,
		"folding.repair.total":     1,
	} {
		got, ok := tt.Int64Sum(t, name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, map[string]int64{"initialize": 3, "reconcile": 0}, tt.Int64SumBy(t, "folding.batch.insertions", "op"))
	assert.Equal(t, uint64(2), tt.HistogramCount(t, "folding.reconcile.duration.seconds"))
}

func TestReconciler_Metrics(t *testing.T) {
	metrics, tt := newTestMetrics(t)
	sink := &recordingSink{}
	r := NewReconciler(lineMapper{lines: 9}, nil, WithMetrics(metrics))
	ctx := context.Background()

	_, err := r.Install(ctx, threeRules(), sink)
	require.NoError(t, err)

	failures, ok := tt.Int64Sum(t, "folding.mapping.failures")
	require.True(t, ok)
	assert.Equal(t, int64(1), failures)

	visible, ok := tt.Int64Sum(t, "folding.regions.visible")
	require.True(t, ok)
	assert.Equal(t, int64(2), visible)

	sink.fail(errors.New("boom"))
	_, err = r.Reconcile(ctx, flatTree(def(1, 0, 2)))
	require.Error(t, err)

	assert.Equal(t, map[string]int64{"reconcile": 1}, tt.Int64SumBy(t, "folding.sink.failures", "op"))
	visible, _ = tt.Int64Sum(t, "folding.regions.visible")
	assert.Equal(t, int64(2), visible, "a dropped batch leaves the visible set alone")
}

func TestReconciler_Spans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	tt.Install(t)

	r, sink := installed(t, threeRules())
	_, err := r.Reconcile(context.Background(), flatTree(def(1, 0, 2), def(2, 4, 6)))
	require.NoError(t, err)
	sink.fail(ErrSinkUnavailable)
	_, err = r.Reconcile(context.Background(), flatTree())
	require.Error(t, err)

	assert.Equal(t, []string{"folding.initialize", "folding.reconcile", "folding.reconcile"}, tt.SpanNames())

	last, found := tt.Span("folding.reconcile")
	require.True(t, found)
	assert.Equal(t, codes.Error, last.Status().Code)
	require.NotEmpty(t, last.Events())
	assert.Equal(t, "exception", last.Events()[0].Name)

	initialize, found := tt.Span("folding.initialize")
	require.True(t, found)
	assert.Contains(t, initialize.Attributes(), attribute.Int("folding.batch.insertions", 3))
}
