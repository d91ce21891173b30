package algorithms

import (
	"math/rand"
	"testing"

	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
)

// nodeID maps an internal test index to a store id that differs from it.
func nodeID(i int) uint64 {
	return uint64(100 + 10*i)
}

type edge struct {
	from, to int
	weight   float64
}

// buildGraph creates a graph with n nodes and the given edges, using
// nodeID(i) as store ids so that index and id never coincide.
func buildGraph(t *testing.T, dir graph.Direction, weighted bool, n int, edges []edge) *graph.Graph {
	t.Helper()
	nodes := make([]uint64, n)
	for i := range nodes {
		nodes[i] = nodeID(i)
	}
	rels := make([]graph.Relationship, len(edges))
	for i, e := range edges {
		w := e.weight
		if w == 0 {
			w = 1
		}
		rels[i] = graph.Relationship{Source: nodeID(e.from), Target: nodeID(e.to), Weight: w}
	}
	g, dropped, err := graph.FromRelationships(dir, weighted, nodes, rels)
	if err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}
	if dropped != 0 {
		t.Fatalf("Unexpected dangling relationships: %d", dropped)
	}
	return g
}

// ring returns the edges 0->1->...->n-1->0.
func ring(n int) []edge {
	edges := make([]edge, n)
	for i := range edges {
		edges[i] = edge{from: i, to: (i + 1) % n}
	}
	return edges
}

// randomEdges returns a ring plus extra random edges, so that every node
// has at least one outgoing relationship.
func randomEdges(seed int64, n, extra int) []edge {
	r := rand.New(rand.NewSource(seed))
	edges := ring(n)
	for range extra {
		edges = append(edges, edge{from: r.Intn(n), to: r.Intn(n), weight: 0.5 + r.Float64()})
	}
	return edges
}

func twoTriangles() []edge {
	return []edge{
		{from: 0, to: 1}, {from: 1, to: 2}, {from: 2, to: 0},
		{from: 3, to: 4}, {from: 4, to: 5}, {from: 5, to: 3},
	}
}
