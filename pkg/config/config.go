// Package config provides configuration loading and management for
// volseg. It handles loading configuration from YAML files and provides
// default values, including the named refinement presets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"volseg/pkg/refine"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Logging controls the structured log output.
	Logging struct {
		// Level is a zerolog level name: trace, debug, info, warn, error.
		Level string `yaml:"level"`

		// Pretty switches to human-readable console output.
		Pretty bool `yaml:"pretty"`
	} `yaml:"logging"`

	// Segmentation selects and parameterizes the segmentation backend.
	Segmentation struct {
		// Backend is the registered backend name.
		Backend string `yaml:"backend"`

		// HuMin and HuMax parameterize the classical threshold backend.
		HuMin float64 `yaml:"huMin"`
		HuMax float64 `yaml:"huMax"`
	} `yaml:"segmentation"`

	// Refinement holds the named parameter presets and the default
	// preset name.
	Refinement struct {
		Default string                   `yaml:"default"`
		Presets map[string]refine.Params `yaml:"presets"`
	} `yaml:"refinement"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Logging.Level = "info"
	cfg.Logging.Pretty = false

	cfg.Segmentation.Backend = "hu-threshold"
	cfg.Segmentation.HuMin = -1000
	cfg.Segmentation.HuMax = -300

	cfg.Refinement.Default = "balanced"
	cfg.Refinement.Presets = map[string]refine.Params{
		"conservative": {
			HuMin:        -1000,
			HuMax:        -300,
			DilationIter: 1,
			ClosingSize:  2,
			FillHoles:    false,
		},
		"balanced": {
			HuMin:        -1000,
			HuMax:        -300,
			DilationIter: 2,
			ClosingSize:  3,
			FillHoles:    true,
		},
		"aggressive": {
			HuMin:        -1000,
			HuMax:        -200,
			DilationIter: 3,
			ClosingSize:  5,
			FillHoles:    true,
		},
	}

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Preset returns the named refinement preset.
func (c *Config) Preset(name string) (refine.Params, error) {
	params, ok := c.Refinement.Presets[name]
	if !ok {
		return refine.Params{}, fmt.Errorf("config: preset %q not found (available: %v)", name, c.PresetNames())
	}
	return params, nil
}

// PresetNames lists the configured preset names, sorted.
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Refinement.Presets))
	for name := range c.Refinement.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
