package algorithms

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/dd0wney/cluso-graphalgo/pkg/config"
	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/parallel"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLouvain(t *testing.T, g *graph.Graph, cfg config.LouvainConfig, opts ...RunOption) *LouvainResult {
	t.Helper()
	l, err := NewLouvain(g, cfg, opts...)
	if err != nil {
		t.Fatalf("NewLouvain failed: %v", err)
	}
	result, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Louvain failed: %v", err)
	}
	return result
}

func community(t *testing.T, r *LouvainResult, i int) int {
	t.Helper()
	c, ok := r.Community(nodeID(i))
	if !ok {
		t.Fatalf("no community for node %d", i)
	}
	return c
}

// TestLouvain_TwoTriangles tests that each triangle becomes one community.
func TestLouvain_TwoTriangles(t *testing.T) {
	for _, dir := range []graph.Direction{graph.Outgoing, graph.Incoming, graph.Both} {
		t.Run(dir.String(), func(t *testing.T) {
			g := buildGraph(t, dir, false, 6, twoTriangles())
			result := runLouvain(t, g, config.DefaultLouvainConfig())

			if community(t, result, 0) != community(t, result, 1) || community(t, result, 1) != community(t, result, 2) {
				t.Errorf("first triangle split: %v", result.Communities)
			}
			if community(t, result, 3) != community(t, result, 4) || community(t, result, 4) != community(t, result, 5) {
				t.Errorf("second triangle split: %v", result.Communities)
			}
			if community(t, result, 0) == community(t, result, 3) {
				t.Errorf("triangles merged: %v", result.Communities)
			}
			if result.CommunityCount() != 2 {
				t.Errorf("CommunityCount = %d, want 2", result.CommunityCount())
			}
			if math.Abs(result.Modularity-0.5) > 1e-9 {
				t.Errorf("Modularity = %f, want 0.5", result.Modularity)
			}
		})
	}
}

// TestLouvain_TwoTrianglesVisitOrder relabels the nodes so that the
// triangles interleave in index order.
func TestLouvain_TwoTrianglesVisitOrder(t *testing.T) {
	perm := []int{5, 0, 3, 1, 4, 2}
	var edges []edge
	for _, e := range twoTriangles() {
		edges = append(edges, edge{from: perm[e.from], to: perm[e.to]})
	}
	g := buildGraph(t, graph.Both, false, 6, edges)
	result := runLouvain(t, g, config.DefaultLouvainConfig())

	first := community(t, result, perm[0])
	second := community(t, result, perm[3])
	assert.NotEqual(t, first, second)
	for i := range 3 {
		assert.Equal(t, first, community(t, result, perm[i]))
		assert.Equal(t, second, community(t, result, perm[i+3]))
	}
}

func TestLouvain_BridgedCliquesAggregate(t *testing.T) {
	// four 4-cliques joined in a ring by single bridges
	var edges []edge
	for c := range 4 {
		base := c * 4
		for i := range 4 {
			for j := i + 1; j < 4; j++ {
				edges = append(edges, edge{from: base + i, to: base + j})
			}
		}
		edges = append(edges, edge{from: base + 3, to: (base + 4) % 16})
	}
	g := buildGraph(t, graph.Both, false, 16, edges)

	cfg := config.DefaultLouvainConfig()
	cfg.IncludeIntermediateCommunities = true
	result := runLouvain(t, g, cfg)

	require.GreaterOrEqual(t, result.Levels, 1)
	require.Len(t, result.Modularities, result.Levels)
	for i := 1; i < len(result.Modularities); i++ {
		assert.GreaterOrEqual(t, result.Modularities[i], result.Modularities[i-1]-1e-12)
	}
	assert.Equal(t, result.Modularities[len(result.Modularities)-1], result.Modularity)

	for c := range 4 {
		for i := 1; i < 4; i++ {
			assert.Equal(t, community(t, result, c*4), community(t, result, c*4+i), "clique %d", c)
		}
	}

	for i := range 16 {
		history := result.IntermediateCommunities(nodeID(i))
		require.Len(t, history, result.Levels)
		assert.Equal(t, result.Communities[i], history[len(history)-1])
	}
}

func TestLouvain_MaxLevelsOne(t *testing.T) {
	g := buildGraph(t, graph.Outgoing, true, 300, randomEdges(11, 300, 600))
	cfg := config.DefaultLouvainConfig()
	cfg.MaxLevels = 1
	cfg.IncludeIntermediateCommunities = true
	result := runLouvain(t, g, cfg)

	assert.Equal(t, 1, result.Levels)
	require.Len(t, result.Communities, 300)
	for i := range 300 {
		assert.Equal(t, []int{result.Communities[i]}, result.Intermediate[i])
	}
}

func TestLouvain_NoRelationshipsIsIdentity(t *testing.T) {
	g := buildGraph(t, graph.Outgoing, false, 4, nil)
	cfg := config.DefaultLouvainConfig()
	cfg.IncludeIntermediateCommunities = true
	result := runLouvain(t, g, cfg)

	assert.Equal(t, 0, result.Levels)
	assert.Equal(t, []int{0, 1, 2, 3}, result.Communities)
	assert.Equal(t, 0.0, result.Modularity)
	for i := range 4 {
		assert.Equal(t, []int{i}, result.IntermediateCommunities(nodeID(i)))
	}
}

func TestLouvain_EmptyGraph(t *testing.T) {
	g := buildGraph(t, graph.Outgoing, false, 0, nil)
	result := runLouvain(t, g, config.DefaultLouvainConfig())
	assert.Empty(t, result.Communities)
	assert.Equal(t, 0, result.CommunityCount())
}

func TestLouvain_IntermediateOnlyWhenRequested(t *testing.T) {
	g := buildGraph(t, graph.Both, false, 6, twoTriangles())
	result := runLouvain(t, g, config.DefaultLouvainConfig())
	assert.Nil(t, result.Intermediate)
	assert.Nil(t, result.IntermediateCommunities(nodeID(0)))
}

func TestLouvain_Deterministic(t *testing.T) {
	g := buildGraph(t, graph.Outgoing, true, 2000, randomEdges(5, 2000, 6000))

	cfg := config.DefaultLouvainConfig()
	cfg.Concurrency = 1
	want := runLouvain(t, g, cfg)

	for _, workers := range []int{2, 8} {
		cfg.Concurrency = workers
		got := runLouvain(t, g, cfg)
		assert.Equal(t, want.Communities, got.Communities, "concurrency %d", workers)
		assert.Equal(t, want.Modularities, got.Modularities, "concurrency %d", workers)
	}
}

func TestLouvain_SeedProperty(t *testing.T) {
	nodes := []uint64{nodeID(0), nodeID(1), nodeID(2), nodeID(3)}
	b := graph.NewBuilder(graph.Both, false, 4)
	_, err := b.AddNodes(nodes)
	require.NoError(t, err)
	// two disconnected nodes share a seed, nothing can pull them apart
	require.NoError(t, b.SetNodeProperty("seed", 0, 7))
	require.NoError(t, b.SetNodeProperty("seed", 3, 7))
	require.NoError(t, b.AddRelationship(1, 2, 1))
	g, err := b.Build()
	require.NoError(t, err)

	cfg := config.DefaultLouvainConfig()
	cfg.SeedProperty = "seed"
	result := runLouvain(t, g, cfg)
	assert.Equal(t, community(t, result, 0), community(t, result, 3))
	assert.Equal(t, community(t, result, 1), community(t, result, 2))
	assert.NotEqual(t, community(t, result, 0), community(t, result, 1))

	cfg.SeedProperty = "missing"
	_, err = NewLouvain(g, cfg)
	assert.True(t, errors.Is(err, ErrMissingSeedProperty))
}

func TestLouvain_RejectsInvalidConfig(t *testing.T) {
	g := buildGraph(t, graph.Both, false, 2, nil)

	cfg := config.DefaultLouvainConfig()
	cfg.MaxLevels = 0
	_, err := NewLouvain(g, cfg)
	assert.Error(t, err)

	_, err = NewLouvain(nil, config.DefaultLouvainConfig())
	assert.True(t, errors.Is(err, ErrNilGraph))
}

func TestLouvain_Cancelled(t *testing.T) {
	g := buildGraph(t, graph.Both, false, 6, twoTriangles())
	l, err := NewLouvain(g, config.DefaultLouvainConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := l.Run(ctx)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Equal(t, 0, result.Levels)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, result.Communities)
}

func TestLevelGraph_DirectedMergesBothDirections(t *testing.T) {
	pool, err := parallel.NewWorkerPool(2)
	require.NoError(t, err)
	defer pool.Close()

	g := buildGraph(t, graph.Outgoing, true, 3, []edge{
		{from: 0, to: 1, weight: 2}, {from: 1, to: 0, weight: 3}, {from: 2, to: 2, weight: 4},
	})
	lg, err := newLevelGraph(g, pool)
	require.NoError(t, err)

	targets, weights := lg.neighbors(0)
	assert.Equal(t, []int32{1}, targets)
	assert.Equal(t, []float64{5}, weights)
	assert.Equal(t, 8.0, lg.loops[2])
	assert.Equal(t, 5.0+5.0+8.0, lg.total)

	agg := aggregate(lg, []int32{0, 0, 1}, 2)
	assert.Equal(t, 10.0, agg.loops[0])
	assert.Equal(t, lg.total, agg.total)
	assert.Equal(t, []float64{10, 8}, agg.degree)
}

func TestRenumber(t *testing.T) {
	dense, count := renumber([]int32{7, 3, 7, 9, 3})
	assert.Equal(t, []int32{0, 1, 0, 2, 1}, dense)
	assert.Equal(t, 3, count)
}

func TestLouvain_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("communities cover every node densely", prop.ForAll(
		func(n, extra int, seed int64) bool {
			nodes := make([]uint64, n)
			for i := range nodes {
				nodes[i] = nodeID(i)
			}
			var rels []graph.Relationship
			for _, e := range randomEdges(seed, n, extra) {
				rels = append(rels, graph.Relationship{Source: nodeID(e.from), Target: nodeID(e.to), Weight: 1})
			}
			g, _, err := graph.FromRelationships(graph.Both, false, nodes, rels)
			if err != nil {
				return false
			}
			l, err := NewLouvain(g, config.DefaultLouvainConfig())
			if err != nil {
				return false
			}
			result, err := l.Run(context.Background())
			if err != nil || len(result.Communities) != n {
				return false
			}
			seen := make([]bool, result.CommunityCount())
			for _, c := range result.Communities {
				if c < 0 || c >= len(seen) {
					return false
				}
				seen[c] = true
			}
			for _, ok := range seen {
				if !ok {
					return false
				}
			}
			return result.Modularity >= -0.5 && result.Modularity <= 1
		},
		gen.IntRange(1, 80),
		gen.IntRange(0, 160),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
