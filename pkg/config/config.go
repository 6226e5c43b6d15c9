// Package config loads the analyzer configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aforolabs/aforo/pkg/advice"
	"github.com/aforolabs/aforo/pkg/ingest"
)

// Config is the complete analyzer configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Ingest  ingest.Config `yaml:"ingest"`
	Advice  AdviceConfig  `yaml:"advice"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig describes where and how often the raw log is fetched.
type SourceConfig struct {
	URL            string `yaml:"url"`
	RefreshSeconds int    `yaml:"refresh_seconds"`
}

// RefreshInterval returns the refresh period as a duration.
func (s SourceConfig) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshSeconds) * time.Second
}

// AdviceConfig tunes the recommendation heuristic.
type AdviceConfig struct {
	StabilityScale    int  `yaml:"stability_scale"`
	MaxMinFromHistory bool `yaml:"max_min_from_history"`
}

// GeminiConfig contains external AI analysis settings. The API key is never
// read from the file; it comes from the environment or flags.
type GeminiConfig struct {
	Model      string `yaml:"model"`
	GCPProject string `yaml:"gcp_project"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			RefreshSeconds: 180,
		},
		Ingest: ingest.DefaultConfig(),
		Advice: AdviceConfig{
			StabilityScale: advice.DefaultStabilityScale,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash-lite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML configuration file, applying defaults for anything the
// file leaves unset.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.Source.RefreshSeconds < 1 {
		return fmt.Errorf("refresh_seconds too small: %d", c.Source.RefreshSeconds)
	}
	if c.Ingest.NoiseFloor < 0 || c.Ingest.NoiseFloor > 100 {
		return fmt.Errorf("noise_floor out of range: %d", c.Ingest.NoiseFloor)
	}
	if c.Advice.StabilityScale < 1 {
		return fmt.Errorf("stability_scale must be positive: %d", c.Advice.StabilityScale)
	}
	return nil
}
