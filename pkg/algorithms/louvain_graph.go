package algorithms

import (
	"cmp"
	"slices"

	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/parallel"
)

// levelGraph is the undirected weighted graph one Louvain level works on.
// Self-loops are kept out of the adjacency: loops[i] is the weight of
// i's self-loop counted from both ends, so that degree[i] equals the sum
// of row i of the symmetric weight matrix.
type levelGraph struct {
	offsets []int64
	targets []int32
	weights []float64
	loops   []float64
	degree  []float64
	total   float64 // sum of all degrees, 2m
}

type neighborWeight struct {
	node   int32
	weight float64
}

func (lg *levelGraph) nodes() int {
	return len(lg.loops)
}

func (lg *levelGraph) neighbors(i int) ([]int32, []float64) {
	lo, hi := lg.offsets[i], lg.offsets[i+1]
	return lg.targets[lo:hi], lg.weights[lo:hi]
}

// newLevelGraph builds the undirected view of g. For directed graphs the
// weight between two nodes is the sum of both relationship directions.
func newLevelGraph(g *graph.Graph, pool *parallel.WorkerPool) (*levelGraph, error) {
	n := g.NodeCount()
	lists := make([][]neighborWeight, n)
	loops := make([]float64, n)

	forward := g.Relationships()
	inverse := g.Inverse()
	directed := g.Direction() != graph.Both

	err := pool.ForEachPartition(n, func(lo, hi int) {
		var acc []neighborWeight
		collect := func(adj *graph.Adjacency, i int, loopFactor float64) {
			weights := adj.Weights(i)
			for s, j := range adj.Targets(i) {
				w := 1.0
				if weights != nil {
					w = weights[s]
				}
				if int(j) == i {
					loops[i] += loopFactor * w
					continue
				}
				acc = append(acc, neighborWeight{node: j, weight: w})
			}
		}
		for i := lo; i < hi; i++ {
			acc = acc[:0]
			if directed {
				collect(forward, i, 1)
				collect(inverse, i, 1)
			} else {
				collect(forward, i, 2)
			}
			lists[i] = mergeNeighbors(acc)
		}
	})
	if err != nil {
		return nil, err
	}
	return compactLevelGraph(lists, loops), nil
}

// mergeNeighbors sorts entries by node and sums duplicates into a new slice.
func mergeNeighbors(entries []neighborWeight) []neighborWeight {
	if len(entries) == 0 {
		return nil
	}
	slices.SortStableFunc(entries, func(a, b neighborWeight) int {
		return cmp.Compare(a.node, b.node)
	})
	out := make([]neighborWeight, 0, len(entries))
	for _, e := range entries {
		if last := len(out) - 1; last >= 0 && out[last].node == e.node {
			out[last].weight += e.weight
			continue
		}
		out = append(out, e)
	}
	return out
}

func compactLevelGraph(lists [][]neighborWeight, loops []float64) *levelGraph {
	n := len(lists)
	lg := &levelGraph{
		offsets: make([]int64, n+1),
		loops:   loops,
		degree:  make([]float64, n),
	}

	var size int64
	for i, l := range lists {
		lg.offsets[i] = size
		size += int64(len(l))
	}
	lg.offsets[n] = size

	lg.targets = make([]int32, 0, size)
	lg.weights = make([]float64, 0, size)
	for i, l := range lists {
		k := loops[i]
		for _, e := range l {
			lg.targets = append(lg.targets, e.node)
			lg.weights = append(lg.weights, e.weight)
			k += e.weight
		}
		lg.degree[i] = k
		lg.total += k
	}
	return lg
}

// aggregate collapses every community of comm into one node. comm must be
// dense in [0, count). Weight inside a community becomes its self-loop,
// so degrees and the total weight are preserved.
func aggregate(lg *levelGraph, comm []int32, count int) *levelGraph {
	acc := make([]map[int32]float64, count)
	loops := make([]float64, count)

	for u := 0; u < lg.nodes(); u++ {
		cu := comm[u]
		loops[cu] += lg.loops[u]
		targets, weights := lg.neighbors(u)
		for s, v := range targets {
			cv := comm[v]
			if cv == cu {
				loops[cu] += weights[s]
				continue
			}
			if acc[cu] == nil {
				acc[cu] = make(map[int32]float64)
			}
			acc[cu][cv] += weights[s]
		}
	}

	lists := make([][]neighborWeight, count)
	for c, m := range acc {
		if len(m) == 0 {
			continue
		}
		l := make([]neighborWeight, 0, len(m))
		for node, w := range m {
			l = append(l, neighborWeight{node: node, weight: w})
		}
		slices.SortFunc(l, func(a, b neighborWeight) int {
			return cmp.Compare(a.node, b.node)
		})
		lists[c] = l
	}
	return compactLevelGraph(lists, loops)
}
