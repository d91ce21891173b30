// Package graph holds the read-only in-memory graph that algorithms run on:
// a dense internal node index space, CSR adjacency in the configured
// direction, its transpose, and the mapping back to store identifiers.
package graph

import (
	"iter"
)

// Graph is immutable once built and safe for concurrent readers.
type Graph struct {
	ids               *IDMap
	forward           *Adjacency
	inverse           *Adjacency
	direction         Direction
	relationshipCount int64
	properties        map[string][]float64
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return g.ids.Len()
}

// RelationshipCount returns the number of relationships loaded from the
// store. With Both each relationship occupies two adjacency entries but is
// counted once.
func (g *Graph) RelationshipCount() int64 {
	return g.relationshipCount
}

// Direction returns the direction the adjacency was built for.
func (g *Graph) Direction() Direction {
	return g.direction
}

// HasWeights reports whether relationship weights were loaded.
func (g *Graph) HasWeights() bool {
	return g.forward.weights != nil
}

// Degree returns the number of neighbors of node i.
func (g *Graph) Degree(i int) int {
	return g.forward.Degree(i)
}

// Neighbors returns the neighbors of node i in adjacency order. The
// sequence can be ranged over any number of times.
func (g *Graph) Neighbors(i int) iter.Seq[int] {
	targets := g.forward.Targets(i)
	return func(yield func(int) bool) {
		for _, t := range targets {
			if !yield(int(t)) {
				return
			}
		}
	}
}

// Weight returns the weight of node i's slot-th relationship, 1.0 when the
// graph is unweighted.
func (g *Graph) Weight(i, slot int) float64 {
	return g.forward.Weight(i, slot)
}

// ForEachRelationship calls fn for every relationship of node i until fn
// returns false.
func (g *Graph) ForEachRelationship(i int, fn func(slot, target int, weight float64) bool) {
	targets := g.forward.Targets(i)
	weights := g.forward.Weights(i)
	for slot, t := range targets {
		w := 1.0
		if weights != nil {
			w = weights[slot]
		}
		if !fn(slot, int(t), w) {
			return
		}
	}
}

// Relationships returns the forward adjacency.
func (g *Graph) Relationships() *Adjacency {
	return g.forward
}

// Inverse returns the transposed adjacency: j is in Inverse().Targets(i)
// iff i is in Relationships().Targets(j). For Both it is the forward
// adjacency itself.
func (g *Graph) Inverse() *Adjacency {
	return g.inverse
}

// OriginalID returns the store identifier of internal node i.
func (g *Graph) OriginalID(i int) uint64 {
	return g.ids.OriginalID(i)
}

// ToInternal maps a store identifier to its internal index.
func (g *Graph) ToInternal(id uint64) (int, bool) {
	return g.ids.ToInternal(id)
}

// NodeProperty returns the loaded values of a node property, indexed by
// internal node index. Nodes without the property hold NaN.
func (g *Graph) NodeProperty(key string) ([]float64, bool) {
	values, ok := g.properties[key]
	return values, ok
}
