package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rendis/flowgraph/internal/codec"
	"github.com/rendis/flowgraph/internal/legacy"
	"github.com/rendis/flowgraph/internal/logging"
	"gopkg.in/yaml.v3"
)

// Config holds the flowgraph CLI configuration.
// Priority: flags > env vars > settings.yaml > defaults.
type Config struct {
	LogLevel          string  `yaml:"log_level"`
	LogFormat         string  `yaml:"log_format"`
	Format            string  `yaml:"format"`
	PositionTolerance float64 `yaml:"position_tolerance"`
	Flatten           string  `yaml:"flatten"`
	Reconstruct       bool    `yaml:"reconstruct"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:          "warn",
		LogFormat:         "text",
		Format:            string(codec.FormatJSON),
		PositionTolerance: 1,
		Flatten:           "siblings",
		Reconstruct:       true,
	}
}

func flowgraphDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowgraph"
	}
	return filepath.Join(home, ".flowgraph")
}

func settingsPath() string {
	return filepath.Join(flowgraphDir(), "settings.yaml")
}

// loadConfig layers the settings file and the environment over the
// defaults. An explicit path must exist; the default path may be missing.
func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	file := path
	if file == "" {
		file = settingsPath()
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", file, err)
		}
	case path == "" && errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if v := getenv("FLOWGRAPH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("FLOWGRAPH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("FLOWGRAPH_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := getenv("FLOWGRAPH_POSITION_TOLERANCE"); v != "" {
		px, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("config: FLOWGRAPH_POSITION_TOLERANCE: %w", err)
		}
		cfg.PositionTolerance = px
	}
	if v := getenv("FLOWGRAPH_FLATTEN"); v != "" {
		cfg.Flatten = v
	}
	if v := getenv("FLOWGRAPH_RECONSTRUCT"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: FLOWGRAPH_RECONSTRUCT: %w", err)
		}
		cfg.Reconstruct = on
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: log_format %q (want text or json)", c.LogFormat)
	}
	if _, err := codec.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("config: format: %w", err)
	}
	if c.PositionTolerance < 0 {
		return fmt.Errorf("config: position_tolerance must not be negative, got %g", c.PositionTolerance)
	}
	if _, ok := legacy.PolicyByName(c.Flatten); !ok {
		return fmt.Errorf("config: flatten %q (want siblings, nested or drop)", c.Flatten)
	}
	return nil
}
