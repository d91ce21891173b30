package config

import (
	"fmt"

	"github.com/dd0wney/cluso-graphalgo/pkg/validation"
	"gopkg.in/yaml.v3"
)

// fromMap overlays params onto out, which holds the defaults. Keys use the
// same names as the YAML file; unknown keys are rejected.
func fromMap(section string, params map[string]any, out interface{ Validate() error }) error {
	if len(params) > 0 {
		data, err := yaml.Marshal(params)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", validation.ErrInvalidConfig, section, err)
		}
		if err := decodeStrict(data, out); err != nil {
			return fmt.Errorf("%s: %w", section, err)
		}
	}
	return out.Validate()
}

// GraphConfigFromMap builds a validated GraphConfig from a parameter map.
func GraphConfigFromMap(params map[string]any) (GraphConfig, error) {
	c := DefaultGraphConfig()
	if err := fromMap("graph", params, &c); err != nil {
		return GraphConfig{}, err
	}
	return c, nil
}

// PageRankConfigFromMap builds a validated PageRankConfig from a parameter map.
func PageRankConfigFromMap(params map[string]any) (PageRankConfig, error) {
	c := DefaultPageRankConfig()
	if err := fromMap("pageRank", params, &c); err != nil {
		return PageRankConfig{}, err
	}
	return c, nil
}

// LouvainConfigFromMap builds a validated LouvainConfig from a parameter map.
func LouvainConfigFromMap(params map[string]any) (LouvainConfig, error) {
	c := DefaultLouvainConfig()
	if err := fromMap("louvain", params, &c); err != nil {
		return LouvainConfig{}, err
	}
	return c, nil
}
