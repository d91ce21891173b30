package algorithms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dd0wney/cluso-graphalgo/pkg/config"
	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/logging"
	"github.com/dd0wney/cluso-graphalgo/pkg/metrics"
)

// ErrMissingSeedProperty is returned when the seed property was not
// loaded with the graph.
var ErrMissingSeedProperty = errors.New("seed property not loaded")

// Louvain detects communities by repeatedly moving nodes between
// communities to raise modularity and then collapsing each community
// into a single node, level after level.
type Louvain struct {
	graph    *graph.Graph
	cfg      config.LouvainConfig
	settings runSettings
	seeds    []float64
}

// levelResult is the frozen outcome of one level.
type levelResult struct {
	communities []int32 // per original node
	modularity  float64
}

// NewLouvain validates cfg against g. Nothing is computed until Run.
func NewLouvain(g *graph.Graph, cfg config.LouvainConfig, opts ...RunOption) (*Louvain, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Louvain{graph: g, cfg: cfg, settings: newRunSettings(opts)}
	if cfg.SeedProperty != "" {
		seeds, ok := g.NodeProperty(cfg.SeedProperty)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingSeedProperty, cfg.SeedProperty)
		}
		l.seeds = seeds
	}
	return l, nil
}

// Run executes all levels. A cancelled run returns the levels completed so
// far with Cancelled set and a nil error.
func (l *Louvain) Run(ctx context.Context) (*LouvainResult, error) {
	runID := newRunID()
	logger := l.settings.logger.With(logging.Algorithm(AlgorithmLouvain), logging.RunID(runID))
	start := time.Now()

	pool, release, err := l.settings.acquirePool(l.cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	defer release()

	n := l.graph.NodeCount()
	logger.Info("louvain started",
		logging.Int("nodes", n),
		logging.Int64("relationships", l.graph.RelationshipCount()),
		logging.Int("max_levels", l.cfg.MaxLevels),
		logging.Bool("seeded", l.seeds != nil))

	fail := func(err error) (*LouvainResult, error) {
		l.settings.metrics.RecordAlgorithmRun(AlgorithmLouvain, metrics.StatusFailed, time.Since(start), 0)
		logger.Error("louvain failed", logging.Error(err))
		return nil, err
	}

	lg, err := newLevelGraph(l.graph, pool)
	if err != nil {
		return fail(err)
	}

	initial := l.initialCommunities(n)
	baseline, _ := renumber(initial)
	baseModularity := newLocalMover(lg, append([]int32(nil), initial...), pool).modularity()

	// membership maps every original node to its node in the current level.
	membership := identity(n)
	current := initial

	var (
		levels      []levelResult
		totalPasses int
		cancelled   bool
	)
	for level := 0; level < l.cfg.MaxLevels; level++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		mover := newLocalMover(lg, current, pool)
		moved, passes, q, stopped, err := mover.run(ctx, l.cfg.MaxIterations, l.cfg.Tolerance)
		if err != nil {
			return fail(err)
		}
		totalPasses += passes
		if stopped {
			cancelled = true
			break
		}
		if moved == 0 {
			logger.Debug("level made no moves", logging.HierarchyLevel(level))
			break
		}

		dense, count := renumber(mover.comm)
		communities := make([]int32, n)
		for u, node := range membership {
			communities[u] = dense[node]
		}
		levels = append(levels, levelResult{communities: communities, modularity: q})
		logger.Info("level finished",
			logging.HierarchyLevel(level),
			logging.Int("passes", passes),
			logging.Int("moves", moved),
			logging.Int("communities", count),
			logging.Float64("modularity", q))

		if level+1 == l.cfg.MaxLevels || count == lg.nodes() {
			break
		}
		lg = aggregate(lg, dense, count)
		membership = communities
		current = identity(count)
	}

	res := l.result(runID, levels, baseline, baseModularity)
	res.Cancelled = cancelled

	status := metrics.StatusConverged
	if cancelled {
		status = metrics.StatusCancelled
	} else if len(levels) == l.cfg.MaxLevels {
		status = metrics.StatusMaxIteration
	}
	elapsed := time.Since(start)
	l.settings.metrics.RecordAlgorithmRun(AlgorithmLouvain, status, elapsed, totalPasses)
	l.settings.metrics.RecordLouvain(res.Levels, res.Modularity)

	fields := []logging.Field{
		logging.Int("levels", res.Levels),
		logging.Int("communities", res.CommunityCount()),
		logging.Float64("modularity", res.Modularity),
		logging.String("status", status),
		logging.Latency(elapsed),
	}
	if cancelled {
		logger.Warn("louvain cancelled", fields...)
	} else {
		logger.Info("louvain finished", fields...)
	}
	return res, nil
}

// initialCommunities puts every node in its own community, except that
// nodes sharing a seed value start together.
func (l *Louvain) initialCommunities(n int) []int32 {
	comm := identity(n)
	if l.seeds == nil {
		return comm
	}
	first := make(map[float64]int32)
	for i, seed := range l.seeds {
		if math.IsNaN(seed) {
			continue
		}
		if c, ok := first[seed]; ok {
			comm[i] = c
			continue
		}
		first[seed] = int32(i)
	}
	return comm
}

func (l *Louvain) result(runID string, levels []levelResult, baseline []int32, baseModularity float64) *LouvainResult {
	n := l.graph.NodeCount()
	res := &LouvainResult{
		Levels: len(levels),
		RunID:  runID,
		graph:  l.graph,
	}

	final := baseline
	res.Modularity = baseModularity
	if len(levels) > 0 {
		last := levels[len(levels)-1]
		final = last.communities
		res.Modularity = last.modularity
	}
	res.Communities = make([]int, n)
	for i, c := range final {
		res.Communities[i] = int(c)
	}

	res.Modularities = make([]float64, len(levels))
	for i, lv := range levels {
		res.Modularities[i] = lv.modularity
	}

	if l.cfg.IncludeIntermediateCommunities {
		res.Intermediate = make([][]int, n)
		depth := max(len(levels), 1)
		for i := range res.Intermediate {
			history := make([]int, 0, depth)
			for _, lv := range levels {
				history = append(history, int(lv.communities[i]))
			}
			if len(levels) == 0 {
				history = append(history, res.Communities[i])
			}
			res.Intermediate[i] = history
		}
	}
	return res
}

func identity(n int) []int32 {
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(i)
	}
	return ids
}

// renumber maps community ids to [0, count) in order of first appearance.
func renumber(comm []int32) ([]int32, int) {
	remap := make(map[int32]int32, len(comm))
	dense := make([]int32, len(comm))
	for i, c := range comm {
		id, ok := remap[c]
		if !ok {
			id = int32(len(remap))
			remap[c] = id
		}
		dense[i] = id
	}
	return dense, len(remap)
}
