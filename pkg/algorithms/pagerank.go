package algorithms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-graphalgo/pkg/config"
	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/logging"
	"github.com/dd0wney/cluso-graphalgo/pkg/metrics"
)

// ErrDirectionMismatch is returned when the requested traversal direction
// cannot be served by the way the graph was loaded.
var ErrDirectionMismatch = errors.New("direction not available on graph")

// PageRank computes (personalized) PageRank over a loaded graph.
type PageRank struct {
	graph    *graph.Graph
	cfg      config.PageRankConfig
	settings runSettings

	// pull lists, for each node, the nodes whose score flows into it.
	// push is the adjacency whose weight sums normalize those flows.
	pull *graph.Adjacency
	push *graph.Adjacency
}

// NewPageRank validates cfg against g. Nothing is computed until Run.
func NewPageRank(g *graph.Graph, cfg config.PageRankConfig, opts ...RunOption) (*PageRank, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if cfg.MaxIterations < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIterations, cfg.MaxIterations)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pull, push, err := traversal(g, cfg.GraphDirection())
	if err != nil {
		return nil, err
	}
	return &PageRank{
		graph:    g,
		cfg:      cfg,
		settings: newRunSettings(opts),
		pull:     pull,
		push:     push,
	}, nil
}

// traversal picks the adjacency that backs each side of the score flow.
// A directed graph serves both directed traversals by swapping its forward
// and inverse lists; an undirected graph only serves BOTH.
func traversal(g *graph.Graph, want graph.Direction) (pull, push *graph.Adjacency, err error) {
	have := g.Direction()
	switch {
	case have == graph.Both && want == graph.Both:
		return g.Relationships(), g.Relationships(), nil
	case have == graph.Both || want == graph.Both:
		return nil, nil, fmt.Errorf("%w: graph loaded %s, traversal %s", ErrDirectionMismatch, have, want)
	case have == want:
		return g.Inverse(), g.Relationships(), nil
	default:
		return g.Relationships(), g.Inverse(), nil
	}
}

// Run iterates PageRank until convergence, the iteration limit or
// cancellation. A cancelled run returns the scores of the last completed
// iteration with Cancelled set and a nil error.
func (p *PageRank) Run(ctx context.Context) (*PageRankResult, error) {
	runID := newRunID()
	logger := p.settings.logger.With(logging.Algorithm(AlgorithmPageRank), logging.RunID(runID))
	start := time.Now()

	pool, release, err := p.settings.acquirePool(p.cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	defer release()

	n := p.graph.NodeCount()
	logger.Info("pagerank started",
		logging.Int("nodes", n),
		logging.Int64("relationships", p.graph.RelationshipCount()),
		logging.Float64("damping_factor", p.cfg.DampingFactor),
		logging.Int("sources", len(p.cfg.SourceNodes)),
		logging.Bool("cache_weights", p.cfg.CacheWeights))

	engine, err := NewEngine(n, EngineOptions{
		MaxIterations: p.cfg.MaxIterations,
		Tolerance:     p.cfg.Tolerance,
		Metric:        MetricL1,
		Pool:          pool,
		OnIteration: func(iteration int, delta float64) {
			logger.Debug("iteration finished", logging.Iteration(iteration), logging.Delta(delta))
		},
	})
	if err != nil {
		return nil, err
	}

	teleport := p.teleport(n, logger)
	uniform := 0.0
	if n > 0 {
		uniform = 1 / float64(n)
	}
	init := func(int) float64 { return uniform }

	var update func(i int, prev []float64) float64
	if p.cfg.CacheWeights {
		update = p.cachedUpdate(teleport)
	} else {
		update = p.directUpdate(teleport)
	}

	res, err := engine.Run(ctx, init, update)
	if err != nil {
		p.settings.metrics.RecordAlgorithmRun(AlgorithmPageRank, metrics.StatusFailed, time.Since(start), 0)
		logger.Error("pagerank failed", logging.Error(err))
		return nil, err
	}

	status := runStatus(res.Converged, res.Cancelled)
	elapsed := time.Since(start)
	p.settings.metrics.RecordAlgorithmRun(AlgorithmPageRank, status, elapsed, res.Iterations)

	fields := []logging.Field{
		logging.Iteration(res.Iterations),
		logging.String("status", status),
		logging.Latency(elapsed),
	}
	if res.Iterations > 0 {
		fields = append(fields, logging.Delta(res.Delta))
	}
	if res.Cancelled {
		logger.Warn("pagerank cancelled", fields...)
	} else {
		logger.Info("pagerank finished", fields...)
	}

	return &PageRankResult{
		Scores:     res.Scores,
		Iterations: res.Iterations,
		Delta:      res.Delta,
		Converged:  res.Converged,
		Cancelled:  res.Cancelled,
		RunID:      runID,
		graph:      p.graph,
	}, nil
}

// teleport returns the per-node restart mass: (1-d)/N everywhere, or only
// at the source nodes of a personalized run.
func (p *PageRank) teleport(n int, logger logging.Logger) []float64 {
	t := make([]float64, n)
	if n == 0 {
		return t
	}
	base := (1 - p.cfg.DampingFactor) / float64(n)
	if len(p.cfg.SourceNodes) == 0 {
		for i := range t {
			t[i] = base
		}
		return t
	}

	var unknown int
	for _, id := range p.cfg.SourceNodes {
		i, ok := p.graph.ToInternal(id)
		if !ok {
			unknown++
			continue
		}
		t[i] = base
	}
	if unknown > 0 {
		logger.Warn("source nodes not in graph are ignored", logging.Count(unknown))
	}
	return t
}

// share is the fraction of a node's outgoing weight carried by one
// relationship. Nodes without outgoing weight pass nothing on.
func share(weight, total float64) float64 {
	if total == 0 {
		return 0
	}
	return weight / total
}

func (p *PageRank) directUpdate(teleport []float64) func(int, []float64) float64 {
	d := p.cfg.DampingFactor
	pull, push := p.pull, p.push
	return func(i int, prev []float64) float64 {
		sources := pull.Targets(i)
		weights := pull.Weights(i)
		var sum float64
		for s, j := range sources {
			w := 1.0
			if weights != nil {
				w = weights[s]
			}
			sum += prev[j] * share(w, push.WeightSum(int(j)))
		}
		return teleport[i] + d*sum
	}
}

// cachedUpdate precomputes every relationship's share once, trading one
// float per relationship for the per-iteration divisions.
func (p *PageRank) cachedUpdate(teleport []float64) func(int, []float64) float64 {
	d := p.cfg.DampingFactor
	pull, push := p.pull, p.push

	shares := make([]float64, pull.Len())
	for i := 0; i < p.graph.NodeCount(); i++ {
		off := pull.Offset(i)
		weights := pull.Weights(i)
		for s, j := range pull.Targets(i) {
			w := 1.0
			if weights != nil {
				w = weights[s]
			}
			shares[off+int64(s)] = share(w, push.WeightSum(int(j)))
		}
	}

	return func(i int, prev []float64) float64 {
		off := pull.Offset(i)
		var sum float64
		for s, j := range pull.Targets(i) {
			sum += prev[j] * shares[off+int64(s)]
		}
		return teleport[i] + d*sum
	}
}

func runStatus(converged, cancelled bool) string {
	switch {
	case cancelled:
		return metrics.StatusCancelled
	case converged:
		return metrics.StatusConverged
	default:
		return metrics.StatusMaxIteration
	}
}
