// Package algorithms runs iterative graph algorithms over a loaded
// graph.Graph: a generic fixed-point engine, PageRank on top of it, and
// hierarchical Louvain community detection.
package algorithms

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dd0wney/cluso-graphalgo/pkg/parallel"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInvalidIterations is returned for a negative iteration limit.
	ErrInvalidIterations = errors.New("max iterations must not be negative")
	// ErrNilGraph is returned when an algorithm is created without a graph.
	ErrNilGraph = errors.New("graph is nil")
)

// Metric selects how the change between two iterations is measured.
type Metric int

const (
	// MetricL1 sums the absolute per-node changes.
	MetricL1 Metric = iota
	// MetricMax takes the largest absolute per-node change.
	MetricMax
)

func (m Metric) norm() float64 {
	if m == MetricMax {
		return math.Inf(1)
	}
	return 1
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	MaxIterations int
	Tolerance     float64
	Metric        Metric
	// Pool runs the per-node updates. Nil runs them on the calling goroutine.
	Pool *parallel.WorkerPool
	// OnIteration, if set, is called after every completed iteration.
	OnIteration func(iteration int, delta float64)
}

// IterationResult is the outcome of Engine.Run. Scores is the buffer of
// the last completed iteration.
type IterationResult struct {
	Scores     []float64
	Iterations int
	Delta      float64
	Converged  bool
	Cancelled  bool
}

// Engine iterates a per-node update function to a fixed point. It owns
// two score buffers: one holds the previous iteration and is read-only
// while the other is written, then their roles swap.
type Engine struct {
	nodes   int
	opts    EngineOptions
	slots   [2][]float64
	current int
}

// NewEngine allocates the score buffers for nodes nodes.
func NewEngine(nodes int, opts EngineOptions) (*Engine, error) {
	if opts.MaxIterations < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIterations, opts.MaxIterations)
	}
	if nodes < 0 {
		return nil, fmt.Errorf("negative node count %d", nodes)
	}
	return &Engine{
		nodes: nodes,
		opts:  opts,
		slots: [2][]float64{make([]float64, nodes), make([]float64, nodes)},
	}, nil
}

// Run fills the first buffer with init, then repeatedly computes
// next[i] = update(i, prev) for every node until the change drops to the
// tolerance or MaxIterations is reached. The context is checked between
// iterations; on cancellation the last completed buffer is returned.
// An empty node set converges without iterating.
func (e *Engine) Run(ctx context.Context, init func(node int) float64, update func(node int, prev []float64) float64) (IterationResult, error) {
	e.current = 0
	if e.nodes == 0 {
		if ctx.Err() != nil {
			return IterationResult{Scores: e.slots[0], Cancelled: true}, nil
		}
		return IterationResult{Scores: e.slots[0], Converged: true}, nil
	}
	first := e.slots[0]
	if err := e.forEach(func(lo, hi int) {
		for i := lo; i < hi; i++ {
			first[i] = init(i)
		}
	}); err != nil {
		return IterationResult{}, err
	}

	var res IterationResult
	for res.Iterations < e.opts.MaxIterations {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		prev, next := e.slots[e.current], e.slots[1-e.current]
		if err := e.forEach(func(lo, hi int) {
			for i := lo; i < hi; i++ {
				next[i] = update(i, prev)
			}
		}); err != nil {
			return IterationResult{}, err
		}

		e.current = 1 - e.current
		res.Iterations++
		res.Delta = e.delta(next, prev)
		if e.opts.OnIteration != nil {
			e.opts.OnIteration(res.Iterations, res.Delta)
		}
		if res.Delta <= e.opts.Tolerance {
			res.Converged = true
			break
		}
	}

	res.Scores = e.slots[e.current]
	return res, nil
}

func (e *Engine) forEach(fn func(lo, hi int)) error {
	if e.opts.Pool == nil {
		if e.nodes > 0 {
			fn(0, e.nodes)
		}
		return nil
	}
	return e.opts.Pool.ForEachPartition(e.nodes, fn)
}

func (e *Engine) delta(next, prev []float64) float64 {
	if len(next) == 0 {
		return 0
	}
	return floats.Distance(next, prev, e.opts.Metric.norm())
}
