// Package metrics defines the Prometheus instrumentation shared by the data
// pipeline and the search path. One Metrics value is created in main and
// threaded through the components that need it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	DatasetLoads   *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	QualityScore   prometheus.Gauge
	GraphNodes     prometheus.Gauge
	GraphEdges     prometheus.Gauge
	SearchDuration prometheus.Histogram
	SearchResults  *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_dataset_loads_total",
			Help: "Dataset loads by resulting mode and cache outcome.",
		}, []string{"mode", "cache_hit"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_errors_total",
			Help: "Non-fatal errors by source component.",
		}, []string{"source", "reason"}),
		QualityScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_dataset_quality_score",
			Help: "Overall quality score of the most recent dataset.",
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_graph_nodes",
			Help: "Node count of the published graph.",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transit_graph_edges",
			Help: "Edge count of the published graph.",
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "transit_search_duration_seconds",
			Help:    "Route search latency.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		SearchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transit_search_results_total",
			Help: "Search outcomes by result code.",
		}, []string{"code"}),
	}

	reg.MustRegister(
		m.DatasetLoads,
		m.Errors,
		m.QualityScore,
		m.GraphNodes,
		m.GraphEdges,
		m.SearchDuration,
		m.SearchResults,
	)

	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
