package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	pr := DefaultPageRankConfig()
	assert.Equal(t, 10, pr.MaxIterations)
	assert.Equal(t, 0.0001, pr.Tolerance)
	assert.Equal(t, 0.85, pr.DampingFactor)
	assert.False(t, pr.CacheWeights)
	assert.Empty(t, pr.SourceNodes)
	assert.Equal(t, graph.Outgoing, pr.GraphDirection())
	require.NoError(t, pr.Validate())

	lv := DefaultLouvainConfig()
	assert.Equal(t, 10, lv.MaxLevels)
	assert.False(t, lv.IncludeIntermediateCommunities)
	require.NoError(t, lv.Validate())

	g := DefaultGraphConfig()
	assert.Equal(t, DefaultBatchSize, g.BatchSize)
	assert.Equal(t, 1.0, g.DefaultWeight)
	assert.False(t, g.Weighted())
	require.NoError(t, g.Validate())
}

func TestPageRankConfigFromMap(t *testing.T) {
	c, err := PageRankConfigFromMap(map[string]any{
		"maxIterations": 20,
		"dampingFactor": 0.9,
		"sourceNodes":   []any{1, 5},
		"cacheWeights":  true,
		"direction":     "incoming",
	})
	require.NoError(t, err)
	assert.Equal(t, 20, c.MaxIterations)
	assert.Equal(t, 0.9, c.DampingFactor)
	assert.Equal(t, 0.0001, c.Tolerance, "omitted keys keep defaults")
	assert.Equal(t, []uint64{1, 5}, c.SourceNodes)
	assert.True(t, c.CacheWeights)
	assert.Equal(t, graph.Incoming, c.GraphDirection())

	c, err = PageRankConfigFromMap(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageRankConfig(), c)
}

func TestPageRankConfig_ZeroIterationsAllowed(t *testing.T) {
	c, err := PageRankConfigFromMap(map[string]any{"maxIterations": 0})
	require.NoError(t, err)
	assert.Equal(t, 0, c.MaxIterations)
}

func TestPageRankConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		field  string
	}{
		{"negative iterations", map[string]any{"maxIterations": -1}, "maxIterations"},
		{"damping one", map[string]any{"dampingFactor": 1.0}, "dampingFactor"},
		{"damping zero", map[string]any{"dampingFactor": 0}, "dampingFactor"},
		{"negative tolerance", map[string]any{"tolerance": -0.5}, "tolerance"},
		{"bad direction", map[string]any{"direction": "sideways"}, "direction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PageRankConfigFromMap(tt.params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, validation.ErrInvalidConfig))
			fes := validation.FieldErrors(err)
			require.Len(t, fes, 1, "%v", err)
			assert.Equal(t, tt.field, fes[0].Field)
			assert.Equal(t, "pageRank", fes[0].Config)
		})
	}
}

func TestFromMap_RejectsUnknownKey(t *testing.T) {
	_, err := LouvainConfigFromMap(map[string]any{"maxLevel": 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "maxLevel")
}

func TestLouvainConfig_Invalid(t *testing.T) {
	_, err := LouvainConfigFromMap(map[string]any{"maxLevels": 0, "tolerance": -1})
	require.Error(t, err)
	assert.Len(t, validation.FieldErrors(err), 2)
}

func TestGraphConfig_Invalid(t *testing.T) {
	_, err := GraphConfigFromMap(map[string]any{
		"nodeLabels":     []any{"Person", "bad label"},
		"batchSize":      0,
		"weightProperty": "1weight",
	})
	require.Error(t, err)

	fields := map[string]bool{}
	for _, fe := range validation.FieldErrors(err) {
		fields[fe.Field] = true
	}
	assert.True(t, fields["nodeLabels"])
	assert.True(t, fields["batchSize"])
	assert.True(t, fields["weightProperty"])
}

func TestGraphConfig_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GraphConfig)
		field  string
	}{
		{"batch too large", func(c *GraphConfig) { c.BatchSize = MaxBatchSize + 1 }, "batchSize"},
		{"negative concurrency", func(c *GraphConfig) { c.Concurrency = -1 }, "concurrency"},
		{"weighted NaN default", func(c *GraphConfig) {
			c.WeightProperty = "weight"
			c.DefaultWeight = math.NaN()
		}, "defaultWeight"},
		{"unweighted NaN default", func(c *GraphConfig) { c.DefaultWeight = math.NaN() }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultGraphConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			fes := validation.FieldErrors(err)
			require.Len(t, fes, 1, "%v", err)
			assert.Equal(t, tt.field, fes[0].Field)
		})
	}
}

func TestLouvainConfig_IterationFields(t *testing.T) {
	c := DefaultLouvainConfig()
	c.MaxIterations = 0
	fes := validation.FieldErrors(c.Validate())
	require.Len(t, fes, 1)
	assert.Equal(t, "maxIterations", fes[0].Field)
	assert.Equal(t, "louvain", fes[0].Config)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphalgo.yaml")
	data := strings.Join([]string{
		"graph:",
		"  nodeLabels: [Page]",
		"  relationshipTypes: [LINKS]",
		"  weightProperty: weight",
		"  batchSize: 500",
		"pageRank:",
		"  maxIterations: 30",
		"louvain:",
		"  includeIntermediateCommunities: true",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Page"}, f.Graph.NodeLabels)
	assert.True(t, f.Graph.Weighted())
	assert.Equal(t, 500, f.Graph.BatchSize)
	assert.Equal(t, graph.Outgoing, f.Graph.GraphDirection())
	assert.Equal(t, 30, f.PageRank.MaxIterations)
	assert.Equal(t, 0.85, f.PageRank.DampingFactor)
	assert.True(t, f.Louvain.IncludeIntermediateCommunities)
	assert.Equal(t, 10, f.Louvain.MaxLevels)
}

func TestParse_EmptyDocumentIsDefault(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *f)
}

func TestParse_ReportsEverySection(t *testing.T) {
	_, err := Parse([]byte("pageRank:\n  dampingFactor: 2\nlouvain:\n  maxLevels: 0\n"))
	require.Error(t, err)

	configs := map[string]bool{}
	for _, fe := range validation.FieldErrors(err) {
		configs[fe.Config] = true
	}
	assert.True(t, configs["pageRank"])
	assert.True(t, configs["louvain"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
