package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolverMetrics contains Prometheus metrics for resolution passes
type ResolverMetrics struct {
	modelResolutionsTotal *prometheus.CounterVec
	nodeResolutionsTotal  *prometheus.CounterVec
	resolutionDuration    prometheus.Histogram
}

// NewResolverMetrics creates resolver metrics and registers them with the registerer.
func NewResolverMetrics(reg prometheus.Registerer) (*ResolverMetrics, error) {
	m := &ResolverMetrics{
		modelResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdeps_model_resolutions_total",
				Help: "Model reference resolutions by resolution type",
			},
			[]string{"resolution_type"},
		),
		nodeResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowdeps_node_resolutions_total",
				Help: "Node type resolutions by match type",
			},
			[]string{"match_type"},
		),
		resolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowdeps_resolution_duration_seconds",
			Help:    "Time taken for a full workflow resolution pass",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.modelResolutionsTotal,
		m.nodeResolutionsTotal,
		m.resolutionDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordModelResolution records one model reference outcome.
func (m *ResolverMetrics) RecordModelResolution(resolutionType string) {
	if m == nil {
		return
	}
	m.modelResolutionsTotal.WithLabelValues(resolutionType).Inc()
}

// RecordNodeResolution records one node reference outcome.
func (m *ResolverMetrics) RecordNodeResolution(matchType string) {
	if m == nil {
		return
	}
	m.nodeResolutionsTotal.WithLabelValues(matchType).Inc()
}

// RecordResolutionPass records a completed workflow resolution pass.
func (m *ResolverMetrics) RecordResolutionPass(duration time.Duration) {
	if m == nil {
		return
	}
	m.resolutionDuration.Observe(duration.Seconds())
}
