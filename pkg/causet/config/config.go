// Package config loads the engine's settings file and supplies
// defaults. All knobs travel with the Config value; nothing is read
// from process-wide state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/causet/pkg/causet/internalerr"
)

// Policy selects how a deconfounding set is chosen when several block
// the backdoor paths.
type Policy string

const (
	PolicyAsk    Policy = "ask"
	PolicyRandom Policy = "random"
	PolicyAll    Policy = "all"
)

// Config carries every tunable of the engine.
type Config struct {
	GraphFileFolder string `yaml:"graph_file_folder"`
	GraphFile       string `yaml:"graph_file"`

	CacheResults bool `yaml:"cache_computation_results"`
	CacheSize    int  `yaml:"cache_size"`

	MinimalSets         bool   `yaml:"minimal_sets"`
	DeconfoundingPolicy Policy `yaml:"deconfounding_policy"`

	DepthBound int `yaml:"depth_bound"`
	StepBudget int `yaml:"step_budget"`

	NormalizationTolerance float64 `yaml:"normalization_tolerance"`
	DriftEpsilon           float64 `yaml:"drift_epsilon"`

	Seed int64 `yaml:"seed"`

	Precision int `yaml:"output_levels_of_precision"`
}

// Default returns the engine's baseline configuration.
func Default() Config {
	return Config{
		GraphFileFolder:        "graphs",
		CacheResults:           true,
		CacheSize:              65536,
		MinimalSets:            false,
		DeconfoundingPolicy:    PolicyAll,
		DepthBound:             10,
		StepBudget:             250000,
		NormalizationTolerance: 1e-5,
		DriftEpsilon:           1e-6,
		Seed:                   0,
		Precision:              5,
	}
}

// Load reads a config YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config back as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	switch c.DeconfoundingPolicy {
	case PolicyAsk, PolicyRandom, PolicyAll:
	default:
		return fmt.Errorf("%w: unknown deconfounding_policy %q", internalerr.ErrInvalidConfig, c.DeconfoundingPolicy)
	}
	if c.DepthBound <= 0 {
		return fmt.Errorf("%w: depth_bound must be positive", internalerr.ErrInvalidConfig)
	}
	if c.StepBudget <= 0 {
		return fmt.Errorf("%w: step_budget must be positive", internalerr.ErrInvalidConfig)
	}
	if c.NormalizationTolerance <= 0 || c.DriftEpsilon <= 0 {
		return fmt.Errorf("%w: tolerances must be positive", internalerr.ErrInvalidConfig)
	}
	return nil
}
