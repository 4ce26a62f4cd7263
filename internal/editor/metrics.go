package editor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/foldd/internal/folding"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for editor sessions.
type Metrics struct {
	DocumentsOpen  prometheus.Gauge
	EditsTotal     *prometheus.CounterVec
	ParseDuration  *prometheus.HistogramVec
	ParseFailures  *prometheus.CounterVec
	FoldOperations *prometheus.CounterVec
	SinkFailures   prometheus.Counter
	TogglesTotal   prometheus.Counter
}

// NewMetrics returns the process-wide editor metrics, registering them with
// the default Prometheus registry on first use.
//
// Metrics:
//   - editor_documents_open - Number of open documents
//   - editor_edits_total{language} - Edits applied
//   - editor_parse_duration_seconds{language} - Parse plus reconcile time
//   - editor_parse_failures_total{language} - Edits rejected by the parser
//   - editor_fold_operations_total{op} - Removals, insertions and updates sent to the UI
//   - editor_sink_failures_total - Batches the UI did not accept
//   - editor_fold_toggles_total - Folds collapsed or expanded by the user
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			DocumentsOpen: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "editor_documents_open",
					Help: "Number of open documents",
				},
			),
			EditsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "editor_edits_total",
					Help: "Total number of edits applied",
				},
				[]string{"language"},
			),
			ParseDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "editor_parse_duration_seconds",
					Help:    "Duration of parse and reconcile per edit in seconds",
					Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
				},
				[]string{"language"},
			),
			ParseFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "editor_parse_failures_total",
					Help: "Total number of edits the parser rejected",
				},
				[]string{"language"},
			),
			FoldOperations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "editor_fold_operations_total",
					Help: "Total number of fold operations sent to the annotation model",
				},
				[]string{"op"},
			),
			SinkFailures: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "editor_sink_failures_total",
					Help: "Total number of batches the annotation model rejected",
				},
			),
			TogglesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "editor_fold_toggles_total",
					Help: "Total number of folds toggled",
				},
			),
		}
	})
	return globalMetrics
}

// recordBatch counts the operations in an applied batch.
func (m *Metrics) recordBatch(b folding.Batch) {
	if m == nil {
		return
	}
	m.FoldOperations.WithLabelValues("removal").Add(float64(len(b.Removals)))
	m.FoldOperations.WithLabelValues("insertion").Add(float64(len(b.Insertions)))
	m.FoldOperations.WithLabelValues("update").Add(float64(len(b.Updates)))
}
