// Package metrics provides Prometheus metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ModelIndexMetrics contains Prometheus metrics for model index operations
type ModelIndexMetrics struct {
	indexOperationsTotal   *prometheus.CounterVec
	indexOperationDuration *prometheus.HistogramVec
	indexModelsGauge       prometheus.Gauge
	indexLocationsGauge    prometheus.Gauge
	scanDuration           prometheus.Histogram
	scanFilesTotal         *prometheus.CounterVec
}

// NewModelIndexMetrics creates model index metrics and registers them with the registerer.
func NewModelIndexMetrics(reg prometheus.Registerer) (*ModelIndexMetrics, error) {
	m := &ModelIndexMetrics{
		indexOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdeps_index_operations_total",
				Help: "Total number of model index operations",
			},
			[]string{"operation", "status"}, // operation: ensure_model, add_location, remove_location; status: success, error
		),
		indexOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowdeps_index_operation_duration_seconds",
				Help:    "Time taken for model index operations",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"operation"},
		),
		indexModelsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowdeps_index_models",
			Help: "Number of model records in the index",
		}),
		indexLocationsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowdeps_index_locations",
			Help: "Number of model locations in the index",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowdeps_scan_duration_seconds",
			Help:    "Time taken for full model directory scans",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7m
		}),
		scanFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdeps_scan_files_total",
				Help: "Total number of files handled by directory scans",
			},
			[]string{"outcome"}, // outcome: hashed, skipped, removed, failed
		),
	}

	for _, c := range []prometheus.Collector{
		m.indexOperationsTotal,
		m.indexOperationDuration,
		m.indexModelsGauge,
		m.indexLocationsGauge,
		m.scanDuration,
		m.scanFilesTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordIndexOperation records one index operation outcome.
func (m *ModelIndexMetrics) RecordIndexOperation(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.indexOperationsTotal.WithLabelValues(operation, status).Inc()
	m.indexOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateIndexSize updates the model and location gauges.
func (m *ModelIndexMetrics) UpdateIndexSize(models, locations int64) {
	if m == nil {
		return
	}
	m.indexModelsGauge.Set(float64(models))
	m.indexLocationsGauge.Set(float64(locations))
}

// RecordScan records a completed directory scan.
func (m *ModelIndexMetrics) RecordScan(duration time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
}

// RecordScanFile records the outcome for one scanned file.
func (m *ModelIndexMetrics) RecordScanFile(outcome string) {
	if m == nil {
		return
	}
	m.scanFilesTotal.WithLabelValues(outcome).Inc()
}
