package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAlgorithmMetrics() {
	r.AlgorithmRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphalgo_algorithm_runs_total",
			Help: "Algorithm runs, by algorithm and final status",
		},
		[]string{"algorithm", "status"},
	)

	r.AlgorithmDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphalgo_algorithm_duration_seconds",
			Help:    "Algorithm run duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
		[]string{"algorithm"},
	)

	r.AlgorithmIterations = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphalgo_algorithm_iterations",
			Help:    "Iterations (or local-move passes) executed per run",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"algorithm"},
	)

	r.LouvainLevels = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphalgo_louvain_levels",
			Help: "Hierarchy levels produced by the last Louvain run",
		},
	)

	r.LouvainModularity = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "graphalgo_louvain_modularity",
			Help: "Final modularity of the last Louvain run",
		},
	)
}
