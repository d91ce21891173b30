package algorithms

import (
	"container/heap"

	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
)

// PageRankResult holds one score per node, indexed by internal node index.
type PageRankResult struct {
	Scores     []float64
	Iterations int
	Delta      float64
	Converged  bool
	Cancelled  bool
	RunID      string

	graph *graph.Graph
}

// RankedNode is a node with its score.
type RankedNode struct {
	NodeID uint64
	Index  int
	Score  float64
}

// Score returns the score of the node with the given store id.
func (r *PageRankResult) Score(nodeID uint64) (float64, bool) {
	i, ok := r.graph.ToInternal(nodeID)
	if !ok {
		return 0, false
	}
	return r.Scores[i], true
}

// ForEach calls fn for every node in internal index order until fn
// returns false.
func (r *PageRankResult) ForEach(fn func(nodeID uint64, score float64) bool) {
	for i, s := range r.Scores {
		if !fn(r.graph.OriginalID(i), s) {
			return
		}
	}
}

// TopNodes returns the n highest scoring nodes, best first. Equal scores
// are ordered by internal index.
func (r *PageRankResult) TopNodes(n int) []RankedNode {
	if n <= 0 {
		return nil
	}

	// Keep the best n in a min-heap whose root is the weakest kept node.
	h := make(rankedNodeHeap, 0, min(n, len(r.Scores)))
	for i, score := range r.Scores {
		rn := RankedNode{Index: i, Score: score}
		if h.Len() < n {
			heap.Push(&h, rn)
		} else if ranksAbove(rn, h[0]) {
			h[0] = rn
			heap.Fix(&h, 0)
		}
	}

	result := make([]RankedNode, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		rn := heap.Pop(&h).(RankedNode)
		rn.NodeID = r.graph.OriginalID(rn.Index)
		result[i] = rn
	}
	return result
}

func ranksAbove(a, b RankedNode) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

type rankedNodeHeap []RankedNode

func (h rankedNodeHeap) Len() int           { return len(h) }
func (h rankedNodeHeap) Less(i, j int) bool { return ranksAbove(h[j], h[i]) }
func (h rankedNodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *rankedNodeHeap) Push(x any) {
	*h = append(*h, x.(RankedNode))
}

func (h *rankedNodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// LouvainResult holds the final community of every node, indexed by
// internal node index, plus the per-level history.
type LouvainResult struct {
	Communities []int
	// Intermediate holds, per node, its community after every level. Only
	// filled when intermediate communities were requested.
	Intermediate [][]int
	Levels       int
	Modularities []float64
	Modularity   float64
	Cancelled    bool
	RunID        string

	graph *graph.Graph
}

// Community returns the final community of the node with the given store id.
func (r *LouvainResult) Community(nodeID uint64) (int, bool) {
	i, ok := r.graph.ToInternal(nodeID)
	if !ok {
		return 0, false
	}
	return r.Communities[i], true
}

// IntermediateCommunities returns the per-level communities of a node, or
// nil when they were not requested or the node is unknown.
func (r *LouvainResult) IntermediateCommunities(nodeID uint64) []int {
	if r.Intermediate == nil {
		return nil
	}
	i, ok := r.graph.ToInternal(nodeID)
	if !ok {
		return nil
	}
	return r.Intermediate[i]
}

// ForEach calls fn for every node in internal index order until fn
// returns false.
func (r *LouvainResult) ForEach(fn func(nodeID uint64, community int) bool) {
	for i, c := range r.Communities {
		if !fn(r.graph.OriginalID(i), c) {
			return
		}
	}
}

// CommunityCount returns the number of distinct final communities.
func (r *LouvainResult) CommunityCount() int {
	count := 0
	for _, c := range r.Communities {
		count = max(count, c+1)
	}
	return count
}
