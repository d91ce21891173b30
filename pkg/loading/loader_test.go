package loading

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-graphalgo/pkg/config"
	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/logging"
	"github.com/dd0wney/cluso-graphalgo/pkg/metrics"
	"github.com/dd0wney/cluso-graphalgo/pkg/store"
	"github.com/dd0wney/cluso-graphalgo/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graphConfig(mutate func(*config.GraphConfig)) config.GraphConfig {
	c := config.DefaultGraphConfig()
	if mutate != nil {
		mutate(&c)
	}
	return c
}

func load(t *testing.T, s store.Scanner, cfg config.GraphConfig, opts ...Option) (*graph.Graph, LoadSummary) {
	t.Helper()
	l, err := NewLoader(s, cfg, opts...)
	require.NoError(t, err)
	g, summary, err := l.Load(context.Background())
	require.NoError(t, err)
	return g, summary
}

// socialStore: persons 0..3, one company 4, KNOWS ring over persons plus
// WORKS_AT edges with weights.
func socialStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	for i := 0; i < 4; i++ {
		_, err := s.AddNode([]string{"Person"}, map[string]any{"age": 20 + i})
		require.NoError(t, err)
	}
	_, err := s.AddNode([]string{"Company"}, nil)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := s.AddRelationship(uint64(i), uint64((i+1)%4), "KNOWS", map[string]any{"weight": float64(i + 1)})
		require.NoError(t, err)
	}
	_, err = s.AddRelationship(0, 4, "WORKS_AT", nil)
	require.NoError(t, err)
	_, err = s.AddRelationship(1, 4, "WORKS_AT", map[string]any{"weight": "heavy"})
	require.NoError(t, err)
	return s
}

func TestLoader_LoadsEverything(t *testing.T) {
	g, summary := load(t, socialStore(t), graphConfig(nil))

	assert.Equal(t, 5, g.NodeCount())
	assert.Equal(t, int64(6), g.RelationshipCount())
	assert.False(t, g.HasWeights())
	assert.Equal(t, int64(5), summary.Nodes)
	assert.Equal(t, int64(6), summary.Relationships)
	assert.Zero(t, summary.NodesFiltered)
	assert.Zero(t, summary.DanglingRelationships)

	for i := 0; i < g.NodeCount(); i++ {
		assert.Equal(t, uint64(i), g.OriginalID(i), "ids assigned in store order")
	}
}

func TestLoader_LabelFilterDropsDangling(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSONLogger(&buf, logging.InfoLevel)
	reg := metrics.NewRegistry()

	g, summary := load(t, socialStore(t), graphConfig(func(c *config.GraphConfig) {
		c.NodeLabels = []string{"Person"}
	}), WithLogger(logger), WithMetrics(reg))

	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, int64(4), g.RelationshipCount())
	assert.Equal(t, int64(1), summary.NodesFiltered)
	assert.Equal(t, int64(2), summary.DanglingRelationships)
	for i := 0; i < g.NodeCount(); i++ {
		for n := range g.Neighbors(i) {
			assert.Less(t, n, g.NodeCount())
		}
	}

	assert.Contains(t, buf.String(), "dropped relationships")
	assert.Equal(t, 1, strings.Count(buf.String(), "dropped relationships"), "dangling drops are summarized once")
}

func TestLoader_RelationshipTypeFilter(t *testing.T) {
	g, summary := load(t, socialStore(t), graphConfig(func(c *config.GraphConfig) {
		c.RelationshipTypes = []string{"WORKS_AT"}
	}))
	assert.Equal(t, int64(2), g.RelationshipCount())
	assert.Equal(t, int64(4), summary.RelationshipsFiltered)
	assert.Equal(t, []int{4}, collect(g, 0))
}

func TestLoader_UnknownNamesMatchNothing(t *testing.T) {
	g, summary := load(t, socialStore(t), graphConfig(func(c *config.GraphConfig) {
		c.NodeLabels = []string{"Robot"}
	}))
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, int64(0), g.RelationshipCount())
	assert.Equal(t, int64(5), summary.NodesFiltered)
	assert.Equal(t, int64(6), summary.DanglingRelationships)
}

func TestLoader_Weights(t *testing.T) {
	g, _ := load(t, socialStore(t), graphConfig(func(c *config.GraphConfig) {
		c.WeightProperty = "weight"
		c.DefaultWeight = 0.25
	}))
	require.True(t, g.HasWeights())

	weightTo := func(src, dst int) float64 {
		w := math.NaN()
		g.ForEachRelationship(src, func(_, target int, weight float64) bool {
			if target == dst {
				w = weight
				return false
			}
			return true
		})
		return w
	}
	assert.Equal(t, 1.0, weightTo(0, 1))
	assert.Equal(t, 4.0, weightTo(3, 0))
	assert.Equal(t, 0.25, weightTo(0, 4), "missing weight uses default")
	assert.Equal(t, 0.25, weightTo(1, 4), "non-numeric weight uses default")
}

func TestLoader_Directions(t *testing.T) {
	incoming, _ := load(t, socialStore(t), graphConfig(func(c *config.GraphConfig) {
		c.Direction = "INCOMING"
	}))
	assert.Equal(t, []int{0, 1}, collect(incoming, 4))

	both, _ := load(t, socialStore(t), graphConfig(func(c *config.GraphConfig) {
		c.Direction = "BOTH"
	}))
	assert.ElementsMatch(t, []int{1, 3, 4}, collect(both, 0))
}

func TestLoader_NodeProperties(t *testing.T) {
	g, _ := load(t, socialStore(t), graphConfig(func(c *config.GraphConfig) {
		c.NodeProperties = []string{"age"}
	}))
	ages, ok := g.NodeProperty("age")
	require.True(t, ok)
	assert.Equal(t, []float64{20, 21, 22, 23}, ages[:4])
	assert.True(t, math.IsNaN(ages[4]))
}

func TestLoader_DeterministicAcrossConcurrency(t *testing.T) {
	s := store.NewMemoryStore()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		labels := []string{"A"}
		if rng.Intn(3) == 0 {
			labels = []string{"B"}
		}
		_, err := s.AddNode(labels, nil)
		require.NoError(t, err)
	}
	for i := 0; i < 8000; i++ {
		_, err := s.AddRelationship(uint64(rng.Intn(2000)), uint64(rng.Intn(2000)), "R",
			map[string]any{"w": rng.Float64()})
		require.NoError(t, err)
	}

	var reference *graph.Graph
	for _, concurrency := range []int{1, 2, 8} {
		g, summary := load(t, s, graphConfig(func(c *config.GraphConfig) {
			c.NodeLabels = []string{"A"}
			c.WeightProperty = "w"
			c.BatchSize = 97
			c.Concurrency = concurrency
		}))
		assert.Equal(t, 21+83, summary.Chunks)
		if reference == nil {
			reference = g
			continue
		}
		require.Equal(t, reference.NodeCount(), g.NodeCount())
		require.Equal(t, reference.RelationshipCount(), g.RelationshipCount())
		for i := 0; i < g.NodeCount(); i++ {
			require.Equal(t, reference.OriginalID(i), g.OriginalID(i))
			require.Equal(t, reference.Relationships().Targets(i), g.Relationships().Targets(i))
			require.Equal(t, reference.Relationships().Weights(i), g.Relationships().Weights(i))
		}
	}
}

func TestLoader_EmptyStore(t *testing.T) {
	g, summary := load(t, store.NewMemoryStore(), graphConfig(nil))
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, summary.Chunks)
}

func TestLoader_RejectsInvalidConfig(t *testing.T) {
	_, err := NewLoader(store.NewMemoryStore(), graphConfig(func(c *config.GraphConfig) {
		c.BatchSize = 0
	}))
	assert.True(t, errors.Is(err, validation.ErrInvalidConfig))
}

func TestLoader_Cancelled(t *testing.T) {
	l, err := NewLoader(socialStore(t), graphConfig(nil))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = l.Load(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

type failingScanner struct {
	*store.MemoryStore
}

func (f failingScanner) ScanRelationships(context.Context, uint64, uint64, func(*store.RelationshipRecord) error) error {
	return errors.New("disk on fire")
}

func TestLoader_PropagatesScanError(t *testing.T) {
	l, err := NewLoader(failingScanner{socialStore(t)}, graphConfig(nil))
	require.NoError(t, err)
	_, _, err = l.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

// unreachableScanner fails the id bound queries the way a lost database
// connection would.
type unreachableScanner struct {
	*store.MemoryStore
	nodes, relationships bool
}

var errUnreachable = errors.New("connection refused")

func (u unreachableScanner) NodeIDBound(ctx context.Context) (uint64, error) {
	if u.nodes {
		return 0, errUnreachable
	}
	return u.MemoryStore.NodeIDBound(ctx)
}

func (u unreachableScanner) RelationshipIDBound(ctx context.Context) (uint64, error) {
	if u.relationships {
		return 0, errUnreachable
	}
	return u.MemoryStore.RelationshipIDBound(ctx)
}

func TestLoader_PropagatesBoundError(t *testing.T) {
	tests := []struct {
		name    string
		scanner unreachableScanner
	}{
		{"nodes", unreachableScanner{MemoryStore: socialStore(t), nodes: true}},
		{"relationships", unreachableScanner{MemoryStore: socialStore(t), relationships: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLoader(tt.scanner, graphConfig(nil))
			require.NoError(t, err)
			g, _, err := l.Load(context.Background())
			assert.True(t, errors.Is(err, errUnreachable))
			assert.Nil(t, g)
		})
	}
}

func collect(g *graph.Graph, i int) []int {
	var out []int
	for n := range g.Neighbors(i) {
		out = append(out, n)
	}
	return out
}
