// Package config provides configuration loading and management for pixelstack.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"pixelstack/pkg/hyperstack"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores bounds how many files are encoded or decoded in parallel
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Virtual stack parameters
	Virtual struct {
		// DelayMs is slept after each generated plane, to simulate slow sources
		DelayMs int `yaml:"delayMs"`

		// FillPattern writes an incrementing test pattern into generated planes
		FillPattern bool `yaml:"fillPattern"`

		// Order is the on-disk plane order of file-backed hyperstacks, e.g. "xyczt"
		Order string `yaml:"order"`

		// Extensions lists the file extensions opened from a directory
		Extensions []string `yaml:"extensions"`
	} `yaml:"virtual"`

	// Composite display parameters
	Composite struct {
		// Mode is composite, color or grayscale
		Mode string `yaml:"mode"`

		// Palette names the channel colours in channel order
		Palette []string `yaml:"palette"`
	} `yaml:"composite"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// JPEGQuality is used for snapshots written as JPEG
		JPEGQuality int `yaml:"jpegQuality"`

		// Format is the image format of exported slice sequences: png or jpeg
		Format string `yaml:"format"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default virtual stack parameters
	cfg.Virtual.DelayMs = 0
	cfg.Virtual.FillPattern = true
	cfg.Virtual.Order = string(hyperstack.CZT)
	cfg.Virtual.Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".tif", ".tiff"}

	// Set default composite parameters
	cfg.Composite.Mode = "composite"
	cfg.Composite.Palette = []string{"red", "green", "blue", "white", "cyan", "magenta", "yellow"}

	// Set default output parameters
	cfg.Output.Verbose = true
	cfg.Output.JPEGQuality = 90
	cfg.Output.Format = "png"

	return cfg
}

// Delay returns the generator delay as a duration
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Virtual.DelayMs) * time.Millisecond
}

// Validate checks values that cannot be repaired with a default
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if c.Virtual.DelayMs < 0 {
		return fmt.Errorf("virtual.delayMs must not be negative, got %d", c.Virtual.DelayMs)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpegQuality must be in [1,100], got %d", c.Output.JPEGQuality)
	}
	switch c.Output.Format {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("output.format must be png or jpeg, got %q", c.Output.Format)
	}
	if _, err := hyperstack.ParseOrder(c.Virtual.Order); err != nil {
		return fmt.Errorf("virtual.order: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
