// Package config loads and validates the host configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration for the host process.
type Config struct {
	// SearchPaths are extra bundle directories scanned ahead of the
	// platform defaults.
	SearchPaths []string `yaml:"search_paths"`

	SampleRate float64 `yaml:"sample_rate" validate:"gt=0"`
	BlockSize  int32   `yaml:"block_size" validate:"gt=0,lte=8192"`

	// EventCapacity bounds the per-block event lists.
	EventCapacity int `yaml:"event_capacity" validate:"gte=0"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		SampleRate:    48000,
		BlockSize:     512,
		EventCapacity: 1024,
		LogLevel:      "info",
	}
}

var validate = validator.New()

// Load reads a YAML config file, filling unset fields from Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
