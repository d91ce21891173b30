package loading

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dd0wney/cluso-graphalgo/pkg/config"
	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/logging"
	"github.com/dd0wney/cluso-graphalgo/pkg/metrics"
	"github.com/dd0wney/cluso-graphalgo/pkg/parallel"
	"github.com/dd0wney/cluso-graphalgo/pkg/pools"
	"github.com/dd0wney/cluso-graphalgo/pkg/store"
)

// Load phases, used as metric labels.
const (
	PhaseNodes         = "nodes"
	PhaseRelationships = "relationships"
	PhaseBuild         = "build"
)

// LoadSummary reports what a load scanned, kept and dropped.
type LoadSummary struct {
	Nodes                 int64
	NodesFiltered         int64
	Relationships         int64
	RelationshipsFiltered int64
	DanglingRelationships int64
	Chunks                int
	Duration              time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. Nil selects a NopLogger.
func WithLogger(l logging.Logger) Option {
	return func(ld *Loader) { ld.logger = logging.OrNop(l) }
}

// WithMetrics records load metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(ld *Loader) { ld.metrics = r }
}

// Loader builds a graph.Graph from a record store.
type Loader struct {
	scanner store.Scanner
	cfg     config.GraphConfig
	logger  logging.Logger
	metrics *metrics.Registry
}

// NewLoader creates a loader. The configuration is validated here, before
// anything is read from the store.
func NewLoader(scanner store.Scanner, cfg config.GraphConfig, opts ...Option) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Loader{
		scanner: scanner,
		cfg:     cfg,
		logger:  logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(logging.Component("loader"))
	return l, nil
}

func (l *Loader) concurrency() int {
	if l.cfg.Concurrency > 0 {
		return l.cfg.Concurrency
	}
	return parallel.DefaultConcurrency()
}

func chunkCount(bound uint64, batch int) int {
	return int((bound + uint64(batch) - 1) / uint64(batch))
}

func chunkRange(chunk, batch int, bound uint64) (uint64, uint64) {
	from := uint64(chunk) * uint64(batch)
	return from, min(from+uint64(batch), bound)
}

// Load scans the store and builds the graph. Node indices follow store id
// order regardless of concurrency.
func (l *Loader) Load(ctx context.Context) (*graph.Graph, LoadSummary, error) {
	start := time.Now()
	op := logging.StartTimer(l.logger, "load graph",
		logging.Int("concurrency", l.concurrency()),
		logging.Int("batch_size", l.cfg.BatchSize))

	labels, unknownLabels := resolveTokens(l.cfg.NodeLabels, l.scanner.LabelToken)
	types, unknownTypes := resolveTokens(l.cfg.RelationshipTypes, l.scanner.TypeToken)
	if len(unknownLabels) > 0 || len(unknownTypes) > 0 {
		l.logger.Warn("filter names unknown to the store match nothing",
			logging.Any("labels", unknownLabels), logging.Any("types", unknownTypes))
	}

	bound, err := l.scanner.NodeIDBound(ctx)
	if err != nil {
		err = fmt.Errorf("node id bound: %w", err)
		op.EndError(err)
		return nil, LoadSummary{}, err
	}
	expected := int(min(bound, uint64(1<<20)))
	b := graph.NewBuilder(l.cfg.GraphDirection(), l.cfg.Weighted(), expected)

	var summary LoadSummary

	phase := time.Now()
	if err := l.loadNodes(ctx, b, labels, bound, &summary); err != nil {
		op.EndError(err)
		return nil, summary, err
	}
	l.metrics.ObserveLoadPhase(PhaseNodes, time.Since(phase))

	phase = time.Now()
	if err := l.loadRelationships(ctx, b, types, &summary); err != nil {
		op.EndError(err)
		return nil, summary, err
	}
	l.metrics.ObserveLoadPhase(PhaseRelationships, time.Since(phase))

	phase = time.Now()
	g, err := b.Build()
	if err != nil {
		op.EndError(err)
		return nil, summary, err
	}
	l.metrics.ObserveLoadPhase(PhaseBuild, time.Since(phase))

	summary.Duration = time.Since(start)
	l.metrics.RecordLoad(metrics.LoadStats{
		NodesLoaded:           summary.Nodes,
		NodesFiltered:         summary.NodesFiltered,
		RelationshipsLoaded:   summary.Relationships,
		RelationshipsFiltered: summary.RelationshipsFiltered,
		RelationshipsDropped:  summary.DanglingRelationships,
	})
	l.metrics.SetGraphSize(g.NodeCount(), g.RelationshipCount())

	if summary.DanglingRelationships > 0 {
		l.logger.Warn("dropped relationships with an endpoint outside the loaded node set",
			logging.Int64("dropped", summary.DanglingRelationships))
	}
	op.End(
		logging.Int64("nodes", summary.Nodes),
		logging.Int64("relationships", summary.Relationships),
		logging.Int("chunks", summary.Chunks))
	return g, summary, nil
}

type nodeChunk struct {
	buffer *NodesBuffer
	// values[k][j] is property NodeProperties[k] of entry j, NaN if absent
	values [][]float64
}

func (c *nodeChunk) release() {
	c.buffer.Release()
	for _, v := range c.values {
		pools.Float64s.Put(v)
	}
}

func (l *Loader) loadNodes(ctx context.Context, b *graph.Builder, labels LabelSet, bound uint64, summary *LoadSummary) error {
	batch := l.cfg.BatchSize
	chunks := chunkCount(bound, batch)
	keys := l.cfg.NodeProperties
	summary.Chunks += chunks

	scan := func(ctx context.Context, chunk int) (*nodeChunk, error) {
		from, to := chunkRange(chunk, batch, bound)
		buf := NewNodesBatchBuffer(labels, int(to-from), len(keys) > 0)
		if err := l.scanner.ScanNodes(ctx, from, to, buf.Offer); err != nil {
			buf.Release()
			return nil, fmt.Errorf("scan nodes [%d,%d): %w", from, to, err)
		}

		c := &nodeChunk{buffer: buf, values: make([][]float64, len(keys))}
		for k, key := range keys {
			vals := pools.Float64s.GetSized(buf.Len())
			c.values[k] = vals
			for j, ref := range buf.Properties() {
				vals[j] = math.NaN()
				v, ok, err := l.scanner.ReadProperty(ctx, ref, key)
				if err != nil {
					c.release()
					return nil, fmt.Errorf("read node property %q: %w", key, err)
				}
				if f, numeric := v.Number(); ok && numeric {
					vals[j] = f
				}
			}
		}
		l.logger.Debug("node chunk scanned", logging.Chunk(chunk),
			logging.Int("accepted", buf.Len()), logging.Int("rejected", buf.Rejected()))
		return c, nil
	}

	drain := func(chunk int, c *nodeChunk) error {
		defer c.release()
		ids := c.buffer.Entries()
		if _, err := b.AddNodes(ids); err != nil {
			return err
		}
		for k, key := range keys {
			for j, id := range ids {
				v := c.values[k][j]
				if math.IsNaN(v) {
					continue
				}
				idx, _ := b.Resolve(id)
				if err := b.SetNodeProperty(key, int(idx), v); err != nil {
					return err
				}
			}
		}
		summary.Nodes += int64(len(ids))
		summary.NodesFiltered += int64(c.buffer.Rejected())
		return nil
	}

	return runChunks(ctx, chunks, l.concurrency(), scan, drain)
}

type resolvedRelationship struct {
	source, target int32
}

type relationshipChunk struct {
	kept     []resolvedRelationship
	weights  []float64
	rejected int
	dangling int
}

func (l *Loader) loadRelationships(ctx context.Context, b *graph.Builder, types LabelSet, summary *LoadSummary) error {
	batch := l.cfg.BatchSize
	bound, err := l.scanner.RelationshipIDBound(ctx)
	if err != nil {
		return fmt.Errorf("relationship id bound: %w", err)
	}
	chunks := chunkCount(bound, batch)
	weighted := l.cfg.Weighted()
	summary.Chunks += chunks

	// The id map is frozen from here on; Resolve only reads it.
	scan := func(ctx context.Context, chunk int) (*relationshipChunk, error) {
		from, to := chunkRange(chunk, batch, bound)
		buf := NewRelationshipsBatchBuffer(types, int(to-from), weighted)
		if err := l.scanner.ScanRelationships(ctx, from, to, buf.Offer); err != nil {
			return nil, fmt.Errorf("scan relationships [%d,%d): %w", from, to, err)
		}

		c := &relationshipChunk{
			kept:     make([]resolvedRelationship, 0, buf.Len()),
			rejected: buf.Rejected(),
		}
		if weighted {
			c.weights = pools.Float64s.Get(buf.Len())
		}
		refs := buf.Properties()
		for j, e := range buf.Entries() {
			src, ok1 := b.Resolve(e.Source)
			dst, ok2 := b.Resolve(e.Target)
			if !ok1 || !ok2 {
				c.dangling++
				continue
			}
			c.kept = append(c.kept, resolvedRelationship{source: src, target: dst})
			if weighted {
				w, err := l.readWeight(ctx, refs[j])
				if err != nil {
					pools.Float64s.Put(c.weights)
					return nil, err
				}
				c.weights = append(c.weights, w)
			}
		}
		return c, nil
	}

	drain := func(chunk int, c *relationshipChunk) error {
		defer pools.Float64s.Put(c.weights)
		for j, r := range c.kept {
			w := 1.0
			if c.weights != nil {
				w = c.weights[j]
			}
			if err := b.AddRelationship(r.source, r.target, w); err != nil {
				return err
			}
		}
		summary.Relationships += int64(len(c.kept))
		summary.RelationshipsFiltered += int64(c.rejected)
		summary.DanglingRelationships += int64(c.dangling)
		return nil
	}

	return runChunks(ctx, chunks, l.concurrency(), scan, drain)
}

// readWeight returns the weight property, or DefaultWeight when it is
// missing or not numeric.
func (l *Loader) readWeight(ctx context.Context, ref store.PropertyRef) (float64, error) {
	v, ok, err := l.scanner.ReadProperty(ctx, ref, l.cfg.WeightProperty)
	if err != nil {
		return 0, fmt.Errorf("read weight property %q: %w", l.cfg.WeightProperty, err)
	}
	if !ok {
		return l.cfg.DefaultWeight, nil
	}
	if f, numeric := v.Number(); numeric && !math.IsNaN(f) {
		return f, nil
	}
	return l.cfg.DefaultWeight, nil
}
