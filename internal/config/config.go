// Package config loads termuri settings from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/termuri/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config represents the complete termuri configuration
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Selection SelectionConfig `yaml:"selection"`
}

// StorageConfig configures the SQLite database
type StorageConfig struct {
	// Path is the database file (default: ~/.termuri/termuri.db)
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// SelectionConfig sets defaults for reference selection requests
type SelectionConfig struct {
	// TargetBundles restricts selection to these vocabularies (empty = all)
	TargetBundles []string `yaml:"target_bundles"`
	// MatchOperator is the default label match operator
	MatchOperator string `yaml:"match_operator"`
	// Limit caps the number of offered terms (0 = no limit)
	Limit int `yaml:"limit"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Path: filepath.Join(home, ".termuri", "termuri.db"),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
		Selection: SelectionConfig{
			MatchOperator: domain.MatchContains,
			Limit:         0,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if !domain.ValidMatchOperator(c.Selection.MatchOperator) {
		return fmt.Errorf("selection.match_operator %q is not supported", c.Selection.MatchOperator)
	}
	if c.Selection.Limit < 0 {
		return fmt.Errorf("selection.limit must be >= 0")
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q is not supported", level)
	}
}

// SelectionRequest builds a selection request from match with the
// configured defaults
func (c *Config) SelectionRequest(match string) domain.SelectionRequest {
	return domain.SelectionRequest{
		Match:         match,
		MatchOperator: c.Selection.MatchOperator,
		Limit:         c.Selection.Limit,
		TargetBundles: c.Selection.TargetBundles,
	}
}
