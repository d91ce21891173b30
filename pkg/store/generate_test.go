package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	opts := GenerateOptions{Nodes: 200, Relationships: 1000, Groups: 4, Locality: 1, Seed: 42}
	s, err := Generate(opts)
	require.NoError(t, err)

	assert.Equal(t, 200, s.NodeCount())
	assert.Equal(t, 1000, s.RelationshipCount())

	groups := make(map[uint64]int64)
	err = s.ScanNodes(context.Background(), 0, nodeBound(t, s), func(n *NodeRecord) error {
		v, ok, err := s.ReadProperty(context.Background(), n.NextProp, GeneratedGroupProperty)
		require.NoError(t, err)
		require.True(t, ok)
		groups[n.ID], _ = v.AsInt()
		return nil
	})
	require.NoError(t, err)

	// locality 1 keeps every relationship inside its group
	err = s.ScanRelationships(context.Background(), 0, relationshipBound(t, s), func(r *RelationshipRecord) error {
		assert.Equal(t, groups[r.Source], groups[r.Target])
		w, ok, err := s.ReadProperty(context.Background(), r.NextProp, GeneratedWeightProperty)
		require.NoError(t, err)
		require.True(t, ok)
		f, _ := w.AsFloat()
		assert.GreaterOrEqual(t, f, 0.5)
		assert.Less(t, f, 1.5)
		return nil
	})
	require.NoError(t, err)

	again, err := Generate(opts)
	require.NoError(t, err)
	assert.Equal(t, s.RelationshipCount(), again.RelationshipCount())
}

func TestGenerate_RejectsRelationshipsWithoutNodes(t *testing.T) {
	_, err := Generate(GenerateOptions{Relationships: 3})
	assert.Error(t, err)

	s, err := Generate(GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, s.NodeCount())
}
