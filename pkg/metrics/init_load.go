package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLoadMetrics() {
	r.LoadNodesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphalgo_load_nodes_total",
			Help: "Nodes scanned by the loader, by outcome",
		},
		[]string{"outcome"},
	)

	r.LoadRelationshipsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphalgo_load_relationships_total",
			Help: "Relationships scanned by the loader, by outcome",
		},
		[]string{"outcome"},
	)

	r.LoadRelationshipsDroppedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "graphalgo_load_relationships_dropped_total",
			Help: "Relationships dropped because an endpoint was not loaded",
		},
	)

	r.LoadDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphalgo_load_duration_seconds",
			Help:    "Graph load duration in seconds, by phase",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
		[]string{"phase"},
	)

	r.GraphNodes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphalgo_graph_nodes",
			Help: "Nodes in the most recently built graph",
		},
	)

	r.GraphRelationships = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphalgo_graph_relationships",
			Help: "Relationships in the most recently built graph",
		},
	)
}
