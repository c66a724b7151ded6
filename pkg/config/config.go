package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/bandctl/internal/codec"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. The zero LogLevel (panic) keeps
// the CLI silent unless a level is asked for.
type Config struct {
	LogLevel             logrus.Level      `yaml:"log_level" json:"log_level"`
	ScanTimeout          time.Duration     `yaml:"scan_timeout" json:"scan_timeout" default:"10s"`
	ConnectTimeout       time.Duration     `yaml:"connect_timeout" json:"connect_timeout" default:"30s"`
	AdvertisementTimeout time.Duration     `yaml:"advertisement_timeout" json:"advertisement_timeout" default:"10s"`
	PageDelay            time.Duration     `yaml:"page_delay" json:"page_delay" default:"1s"`
	BatchSize            int               `yaml:"batch_size" json:"batch_size" default:"1000"`
	StorePath            string            `yaml:"store_path" json:"store_path" default:"~/.bandctl/bands.yaml"`
	Timezone             string            `yaml:"timezone" json:"timezone" default:"Local"`
	TemperatureUnit      string            `yaml:"temperature_unit" json:"temperature_unit" default:"celsius"`
	OutputFormat         string            `yaml:"output_format" json:"output_format" default:"table"`
	Steps                codec.StepsLayout `yaml:"steps_layout" json:"steps_layout"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// DefaultPath is where Load looks when no path is given
func DefaultPath() string {
	return filepath.Join("~", ".bandctl", "config.yaml")
}

// Load overlays the YAML file at path on the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}

	raw, err := os.ReadFile(ExpandHome(path))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that the YAML decoder cannot
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page_delay must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("output_format must be table or json, got %q", c.OutputFormat)
	}
	return c.Steps.Validate()
}

// Location resolves Timezone
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ResolvedStorePath expands a leading ~ in StorePath
func (c *Config) ResolvedStorePath() string {
	return ExpandHome(c.StorePath)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
