// Package metrics provides Prometheus metrics for the statement pipeline
// and edit engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the extractor.
type Metrics struct {
	// Ingestion metrics
	DocumentsIngestedTotal *prometheus.CounterVec
	StatementsExtracted    prometheus.Counter
	SegmentationDuration   prometheus.Histogram

	// Edit engine metrics
	EditOperationsTotal *prometheus.CounterVec

	// Store metrics
	StatementsVisible prometheus.Gauge
}

// New creates and registers all metrics on the given registerer. Passing
// nil registers on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	m.DocumentsIngestedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statext_documents_ingested_total",
			Help: "Total number of document ingestions by outcome",
		},
		[]string{"outcome"},
	)

	m.StatementsExtracted = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "statext_statements_extracted_total",
			Help: "Total number of statements produced by segmentation",
		},
	)

	m.SegmentationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "statext_segmentation_duration_seconds",
			Help:    "Duration of the normalize-segment-classify pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.EditOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statext_edit_operations_total",
			Help: "Total number of edit operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)

	m.StatementsVisible = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "statext_statements_visible",
			Help: "Number of non-superseded statements across documents",
		},
	)

	return m
}

// ObserveIngestion records one ingestion outcome and its duration.
// Nil-safe so callers may run without metrics.
func (m *Metrics) ObserveIngestion(outcome string, statements int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsIngestedTotal.WithLabelValues(outcome).Inc()
	m.StatementsExtracted.Add(float64(statements))
	m.SegmentationDuration.Observe(elapsed.Seconds())
}

// ObserveEdit records one edit operation outcome. Nil-safe.
func (m *Metrics) ObserveEdit(operation, status string) {
	if m == nil {
		return
	}
	m.EditOperationsTotal.WithLabelValues(operation, status).Inc()
}

// SetVisibleStatements updates the visible statement gauge. Nil-safe.
func (m *Metrics) SetVisibleStatements(n int) {
	if m == nil {
		return
	}
	m.StatementsVisible.Set(float64(n))
}
