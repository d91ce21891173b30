// Package metrics exposes Prometheus metrics for graph loading and
// algorithm runs. Every recording method accepts a nil *Registry and does
// nothing, so components can take metrics as an optional dependency.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Load Metrics
	LoadNodesTotal                *prometheus.CounterVec
	LoadRelationshipsTotal        *prometheus.CounterVec
	LoadRelationshipsDroppedTotal prometheus.Counter
	LoadDuration                  *prometheus.HistogramVec

	// Graph Metrics
	GraphNodes         prometheus.Gauge
	GraphRelationships prometheus.Gauge

	// Algorithm Metrics
	AlgorithmRunsTotal  *prometheus.CounterVec
	AlgorithmDuration   *prometheus.HistogramVec
	AlgorithmIterations *prometheus.HistogramVec
	LouvainLevels       prometheus.Gauge
	LouvainModularity   prometheus.Gauge

	// System Metrics
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initLoadMetrics()
	r.initAlgorithmMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Gatherer returns the registry as a prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the current metric values to path in the text
// exposition format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
