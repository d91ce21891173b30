package store

import (
	"fmt"
	"math/rand"
)

// Names used by generated stores.
const (
	GeneratedLabel          = "Node"
	GeneratedType           = "LINKS"
	GeneratedWeightProperty = "weight"
	GeneratedGroupProperty  = "group"
)

// GenerateOptions shapes a generated store.
type GenerateOptions struct {
	Nodes         int
	Relationships int
	// Groups splits the nodes into planted communities. Most relationships
	// stay inside a group.
	Groups int
	// Locality is the probability that a relationship stays inside its
	// source's group.
	Locality float64
	Seed     int64
}

// DefaultGenerateOptions returns options for a small clustered graph.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Nodes: 1000, Relationships: 5000, Groups: 10, Locality: 0.9, Seed: 1}
}

// Generate fills a new MemoryStore with a random clustered graph. Every
// node carries its group and every relationship a weight in [0.5, 1.5).
func Generate(opts GenerateOptions) (*MemoryStore, error) {
	if opts.Nodes < 0 || opts.Relationships < 0 {
		return nil, fmt.Errorf("negative size: %d nodes, %d relationships", opts.Nodes, opts.Relationships)
	}
	if opts.Relationships > 0 && opts.Nodes == 0 {
		return nil, fmt.Errorf("%d relationships need at least one node", opts.Relationships)
	}
	groups := max(opts.Groups, 1)
	r := rand.New(rand.NewSource(opts.Seed))
	s := NewMemoryStore()

	members := make([][]uint64, groups)
	for i := 0; i < opts.Nodes; i++ {
		g := i % groups
		id, err := s.AddNode([]string{GeneratedLabel}, map[string]any{GeneratedGroupProperty: int64(g)})
		if err != nil {
			return nil, err
		}
		members[g] = append(members[g], id)
	}

	for i := 0; i < opts.Relationships; i++ {
		src := uint64(r.Intn(opts.Nodes))
		var dst uint64
		if group := members[int(src)%groups]; r.Float64() < opts.Locality && len(group) > 1 {
			dst = group[r.Intn(len(group))]
		} else {
			dst = uint64(r.Intn(opts.Nodes))
		}
		props := map[string]any{GeneratedWeightProperty: 0.5 + r.Float64()}
		if _, err := s.AddRelationship(src, dst, GeneratedType, props); err != nil {
			return nil, err
		}
	}
	return s, nil
}
