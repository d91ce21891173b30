package graph

import (
	"errors"
	"fmt"
	"math"
)

// ErrBuilt is returned when a Builder is used after Build.
var ErrBuilt = errors.New("builder already built")

// Builder accumulates nodes and relationships and compacts them into a
// Graph. Node index assignment goes through the builder's single counter,
// so a Builder must be driven by one goroutine at a time; Resolve is safe
// for concurrent readers once no more nodes are added.
type Builder struct {
	ids       *IDMap
	direction Direction
	weighted  bool

	forward        [][]int32
	forwardWeights [][]float64
	inverse        [][]int32
	inverseWeights [][]float64

	relationships int64
	properties    map[string][]float64
	built         bool
}

// NewBuilder creates a builder for the given direction. When weighted is
// false relationship weights are discarded.
func NewBuilder(direction Direction, weighted bool, expectedNodes int) *Builder {
	return &Builder{
		ids:        NewIDMap(expectedNodes),
		direction:  direction,
		weighted:   weighted,
		properties: make(map[string][]float64),
	}
}

// AddNodes assigns contiguous internal indices to ids in order and returns
// the index of the first newly assigned node. Ids seen before keep their
// index and are skipped.
func (b *Builder) AddNodes(ids []uint64) (first int, err error) {
	if b.built {
		return 0, ErrBuilt
	}
	first = b.ids.Len()
	for _, id := range ids {
		if _, added, err := b.ids.add(id); err != nil {
			return first, err
		} else if added {
			b.forward = append(b.forward, nil)
			if b.direction != Both {
				b.inverse = append(b.inverse, nil)
			}
			if b.weighted {
				b.forwardWeights = append(b.forwardWeights, nil)
				if b.direction != Both {
					b.inverseWeights = append(b.inverseWeights, nil)
				}
			}
		}
	}
	return first, nil
}

// Resolve returns the internal index of a store identifier.
func (b *Builder) Resolve(id uint64) (int32, bool) {
	idx, ok := b.ids.toInternal[id]
	return idx, ok
}

// NodeCount returns the number of nodes added so far.
func (b *Builder) NodeCount() int {
	return b.ids.Len()
}

// SetNodeProperty records a numeric node property for internal node i.
func (b *Builder) SetNodeProperty(key string, i int, value float64) error {
	if b.built {
		return ErrBuilt
	}
	if i < 0 || i >= b.ids.Len() {
		return fmt.Errorf("node index %d out of range [0, %d)", i, b.ids.Len())
	}
	values := b.properties[key]
	for len(values) <= i {
		values = append(values, math.NaN())
	}
	values[i] = value
	b.properties[key] = values
	return nil
}

// AddRelationship appends a relationship between two internal indices to
// the adjacency of the configured direction and to its transpose.
func (b *Builder) AddRelationship(source, target int32, weight float64) error {
	if b.built {
		return ErrBuilt
	}
	n := int32(b.ids.Len())
	if source < 0 || source >= n || target < 0 || target >= n {
		return fmt.Errorf("relationship (%d)->(%d) references a node outside [0, %d)", source, target, n)
	}

	switch b.direction {
	case Outgoing:
		b.link(source, target, weight)
	case Incoming:
		b.link(target, source, weight)
	case Both:
		b.forward[source] = append(b.forward[source], target)
		if b.weighted {
			b.forwardWeights[source] = append(b.forwardWeights[source], weight)
		}
		if source != target {
			b.forward[target] = append(b.forward[target], source)
			if b.weighted {
				b.forwardWeights[target] = append(b.forwardWeights[target], weight)
			}
		}
	}
	b.relationships++
	return nil
}

func (b *Builder) link(from, to int32, weight float64) {
	b.forward[from] = append(b.forward[from], to)
	b.inverse[to] = append(b.inverse[to], from)
	if b.weighted {
		b.forwardWeights[from] = append(b.forwardWeights[from], weight)
		b.inverseWeights[to] = append(b.inverseWeights[to], weight)
	}
}

// Build compacts the accumulated lists into an immutable Graph. The
// builder cannot be used afterwards.
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		return nil, ErrBuilt
	}
	b.built = true

	var fw, iw [][]float64
	if b.weighted {
		fw, iw = b.forwardWeights, b.inverseWeights
	}

	forward := newAdjacency(b.forward, fw)
	inverse := forward
	if b.direction != Both {
		inverse = newAdjacency(b.inverse, iw)
	}

	n := b.ids.Len()
	for key, values := range b.properties {
		for len(values) < n {
			values = append(values, math.NaN())
		}
		b.properties[key] = values
	}

	g := &Graph{
		ids:               b.ids,
		forward:           forward,
		inverse:           inverse,
		direction:         b.direction,
		relationshipCount: b.relationships,
		properties:        b.properties,
	}

	b.forward, b.forwardWeights, b.inverse, b.inverseWeights = nil, nil, nil, nil
	return g, nil
}

// Relationship is a store-level relationship used by FromRelationships.
type Relationship struct {
	Source uint64
	Target uint64
	Weight float64
}

// FromRelationships builds a graph from explicit node ids and
// relationships. Relationships with an unknown endpoint are skipped and
// counted in the returned value.
func FromRelationships(direction Direction, weighted bool, nodes []uint64, rels []Relationship) (*Graph, int, error) {
	b := NewBuilder(direction, weighted, len(nodes))
	if _, err := b.AddNodes(nodes); err != nil {
		return nil, 0, err
	}

	dropped := 0
	for _, r := range rels {
		src, ok1 := b.Resolve(r.Source)
		dst, ok2 := b.Resolve(r.Target)
		if !ok1 || !ok2 {
			dropped++
			continue
		}
		if err := b.AddRelationship(src, dst, r.Weight); err != nil {
			return nil, dropped, err
		}
	}

	g, err := b.Build()
	return g, dropped, err
}
