// Package config holds the typed parameters of graph loading, PageRank
// and Louvain. Values come from defaults, a parameter map or a YAML file
// and are validated before anything is loaded.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dd0wney/cluso-graphalgo/pkg/graph"
	"github.com/dd0wney/cluso-graphalgo/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultBatchSize     = 10000
	MaxBatchSize         = 1 << 20
	DefaultWeight        = 1.0
	DefaultMaxIterations = 10
	DefaultTolerance     = 0.0001
	DefaultDampingFactor = 0.85
	DefaultMaxLevels     = 10
)

// GraphConfig selects and shapes the graph to load.
type GraphConfig struct {
	NodeLabels        []string `yaml:"nodeLabels"`
	RelationshipTypes []string `yaml:"relationshipTypes"`
	Direction         string   `yaml:"direction"`
	WeightProperty    string   `yaml:"weightProperty"`
	DefaultWeight     float64  `yaml:"defaultWeight"`
	NodeProperties    []string `yaml:"nodeProperties"`
	BatchSize         int      `yaml:"batchSize"`
	Concurrency       int      `yaml:"concurrency" validate:"min=0"`
}

// PageRankConfig configures a PageRank run.
type PageRankConfig struct {
	MaxIterations int      `yaml:"maxIterations"`
	Tolerance     float64  `yaml:"tolerance"`
	DampingFactor float64  `yaml:"dampingFactor"`
	SourceNodes   []uint64 `yaml:"sourceNodes"`
	CacheWeights  bool     `yaml:"cacheWeights"`
	Direction     string   `yaml:"direction"`
	Concurrency   int      `yaml:"concurrency" validate:"min=0"`
}

// LouvainConfig configures a Louvain run.
type LouvainConfig struct {
	MaxLevels                      int     `yaml:"maxLevels"`
	MaxIterations                  int     `yaml:"maxIterations"`
	Tolerance                      float64 `yaml:"tolerance"`
	IncludeIntermediateCommunities bool    `yaml:"includeIntermediateCommunities"`
	SeedProperty                   string  `yaml:"seedProperty"`
	Concurrency                    int     `yaml:"concurrency" validate:"min=0"`
}

// File is the layout of a YAML configuration file.
type File struct {
	Graph    GraphConfig    `yaml:"graph"`
	PageRank PageRankConfig `yaml:"pageRank"`
	Louvain  LouvainConfig  `yaml:"louvain"`
}

func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		Direction:     graph.Outgoing.String(),
		DefaultWeight: DefaultWeight,
		BatchSize:     DefaultBatchSize,
	}
}

func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		DampingFactor: DefaultDampingFactor,
		Direction:     graph.Outgoing.String(),
	}
}

func DefaultLouvainConfig() LouvainConfig {
	return LouvainConfig{
		MaxLevels:     DefaultMaxLevels,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// Default returns a File with every section at its defaults.
func Default() File {
	return File{
		Graph:    DefaultGraphConfig(),
		PageRank: DefaultPageRankConfig(),
		Louvain:  DefaultLouvainConfig(),
	}
}

// GraphDirection returns the parsed load direction.
func (c GraphConfig) GraphDirection() graph.Direction {
	d, _ := graph.ParseDirection(c.Direction)
	return d
}

// Weighted reports whether relationships carry a weight property.
func (c GraphConfig) Weighted() bool {
	return c.WeightProperty != ""
}

// GraphDirection returns the parsed traversal direction.
func (c PageRankConfig) GraphDirection() graph.Direction {
	d, _ := graph.ParseDirection(c.Direction)
	return d
}

func validateDirection(cv *validation.ConfigValidator, value string) {
	cv.Custom("direction", fmt.Sprintf("%q", value), func() error {
		_, err := graph.ParseDirection(value)
		return err
	})
}

// Validate checks the graph configuration.
func (c GraphConfig) Validate() error {
	cv := validation.NewConfigValidator("graph").
		Merge(validation.Struct("graph", c)).
		Names("nodeLabels", c.NodeLabels).
		Names("relationshipTypes", c.RelationshipTypes).
		PropertyKey("weightProperty", c.WeightProperty).
		RangeInt("batchSize", c.BatchSize, 1, MaxBatchSize).
		When(c.Weighted(), func(cv *validation.ConfigValidator) {
			cv.Finite("defaultWeight", c.DefaultWeight)
		})
	for _, key := range c.NodeProperties {
		cv.Custom("nodeProperties", fmt.Sprintf("%q", key), func() error {
			return validation.ValidatePropertyKey(key)
		})
	}
	validateDirection(cv, c.Direction)
	return cv.Validate()
}

// Validate checks the PageRank configuration.
func (c PageRankConfig) Validate() error {
	cv := validation.NewConfigValidator("pageRank").
		Merge(validation.Struct("pageRank", c)).
		NonNegative("maxIterations", c.MaxIterations).
		NonNegativeFloat("tolerance", c.Tolerance).
		OpenRangeFloat("dampingFactor", c.DampingFactor, 0, 1)
	validateDirection(cv, c.Direction)
	return cv.Validate()
}

// Validate checks the Louvain configuration.
func (c LouvainConfig) Validate() error {
	return validation.NewConfigValidator("louvain").
		Merge(validation.Struct("louvain", c)).
		Positive("maxLevels", c.MaxLevels).
		Positive("maxIterations", c.MaxIterations).
		NonNegativeFloat("tolerance", c.Tolerance).
		PropertyKey("seedProperty", c.SeedProperty).
		Validate()
}

// Validate checks every section.
func (f *File) Validate() error {
	return validation.NewConfigValidator("file").
		Merge(f.Graph.Validate()).
		Merge(f.PageRank.Validate()).
		Merge(f.Louvain.Validate()).
		Validate()
}

// Load reads a YAML configuration file. Omitted keys keep their defaults;
// unknown keys are rejected.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := decodeStrict(data, &f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", validation.ErrInvalidConfig, err)
	}
	return nil
}
