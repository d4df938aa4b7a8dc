// Package config provides configuration loading and structs for fairscan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/fairscan/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Audit   AuditConfig   `yaml:"audit"`
	Watch   WatchConfig   `yaml:"watch"`
}

// WatchConfig holds model directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions" validate:"dive,startswith=."`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	// RateLimit is the sustained number of audit submissions per second.
	RateLimit float64 `yaml:"rate_limit" validate:"gt=0"`
	RateBurst int     `yaml:"rate_burst" validate:"min=1"`
}

// StorageConfig holds the audit database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" validate:"required"`
}

// AuditConfig holds the defaults for audits started by the CLI, the watcher
// and API requests that leave fields out.
type AuditConfig struct {
	Metric string `yaml:"metric" validate:"oneof=divergence difference"`
	// TargetValue overrides each model's own target value when set.
	TargetValue *int          `yaml:"target_value" validate:"omitempty,min=0,max=1"`
	Threshold   float64       `yaml:"threshold" validate:"gte=0"`
	TopK        int           `yaml:"top_k" validate:"min=1"`
	StopAfterK  bool          `yaml:"stop_after_k"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	Parallel    int           `yaml:"parallel" validate:"min=1"`
}

// Request returns the audit request these defaults describe for m.
func (a *AuditConfig) Request(m *models.Model) models.AuditRequest {
	target := m.TargetValue
	if a.TargetValue != nil {
		target = *a.TargetValue
	}
	return models.AuditRequest{
		Metric:      models.Metric(a.Metric),
		TargetValue: target,
		Threshold:   a.Threshold,
		Sensitive:   m.SensitiveIDs(),
		K:           a.TopK,
		StopAfterK:  a.StopAfterK,
		Timeout:     a.Timeout,
	}
}

// Load reads and parses the config file at path, applies defaults, expands
// paths and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
