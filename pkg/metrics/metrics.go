package metrics

import (
	"runtime"
	"time"
)

// Run statuses used as the status label of algorithm runs.
const (
	StatusConverged    = "converged"
	StatusMaxIteration = "max_iterations"
	StatusCancelled    = "cancelled"
	StatusFailed       = "failed"
)

// LoadStats is what the loader reports after a load.
type LoadStats struct {
	NodesLoaded           int64
	NodesFiltered         int64
	RelationshipsLoaded   int64
	RelationshipsFiltered int64
	RelationshipsDropped  int64
}

// RecordLoad adds the outcome counts of one load.
func (r *Registry) RecordLoad(s LoadStats) {
	if r == nil {
		return
	}
	r.LoadNodesTotal.WithLabelValues("loaded").Add(float64(s.NodesLoaded))
	r.LoadNodesTotal.WithLabelValues("filtered").Add(float64(s.NodesFiltered))
	r.LoadRelationshipsTotal.WithLabelValues("loaded").Add(float64(s.RelationshipsLoaded))
	r.LoadRelationshipsTotal.WithLabelValues("filtered").Add(float64(s.RelationshipsFiltered))
	r.LoadRelationshipsDroppedTotal.Add(float64(s.RelationshipsDropped))
}

// ObserveLoadPhase records how long one load phase took.
func (r *Registry) ObserveLoadPhase(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.LoadDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// SetGraphSize records the size of the graph just built.
func (r *Registry) SetGraphSize(nodes int, relationships int64) {
	if r == nil {
		return
	}
	r.GraphNodes.Set(float64(nodes))
	r.GraphRelationships.Set(float64(relationships))
}

// RecordAlgorithmRun records one finished run.
func (r *Registry) RecordAlgorithmRun(algorithm, status string, duration time.Duration, iterations int) {
	if r == nil {
		return
	}
	r.AlgorithmRunsTotal.WithLabelValues(algorithm, status).Inc()
	r.AlgorithmDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	r.AlgorithmIterations.WithLabelValues(algorithm).Observe(float64(iterations))
}

// RecordLouvain records the hierarchy depth and final modularity.
func (r *Registry) RecordLouvain(levels int, modularity float64) {
	if r == nil {
		return
	}
	r.LouvainLevels.Set(float64(levels))
	r.LouvainModularity.Set(modularity)
}

// UpdateSystemMetrics samples goroutine and memory statistics.
func (r *Registry) UpdateSystemMetrics() {
	if r == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}
