package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics collects the pipeline's Prometheus instruments. Construction
// is explicit so tests can use their own registry.
type metrics struct {
	scansTotal      *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	fieldConfidence *prometheus.HistogramVec
	bubblesDetected prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bubblegrade_scans_total",
				Help: "Total number of processed scans",
			},
			[]string{"status"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bubblegrade_stage_duration_seconds",
				Help:    "Processing duration per pipeline stage",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"}, // stage: enhance, layout, omr, nombre, curp, total
		),
		fieldConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bubblegrade_field_confidence",
				Help:    "Extraction confidence per field",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"field"}, // field: nombre, curp
		),
		bubblesDetected: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bubblegrade_bubbles_detected",
				Help:    "Number of bubbles detected per sheet",
				Buckets: []float64{0, 5, 10, 20, 40, 60, 80, 120, 200},
			},
		),
	}
}
