package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackendConfig holds query backend connectivity settings.
type BackendConfig struct {
	// DatabasePath is the DuckDB database file; empty for in-memory.
	DatabasePath string `yaml:"database_path"`
	// DefaultCatalog is applied with USE when set.
	DefaultCatalog string `yaml:"default_catalog"`
}

// HistoryConfig holds execution history log settings.
type HistoryConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// ServerConfig holds monitoring/query endpoint settings.
type ServerConfig struct {
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	CORSOrigins    []string `yaml:"cors_origins"`
}

// AppConfig is the optional YAML application configuration, merged
// under CLI flags.
type AppConfig struct {
	Backend  BackendConfig `yaml:"backend"`
	History  HistoryConfig `yaml:"history"`
	Server   ServerConfig  `yaml:"server"`
	LogLevel string        `yaml:"log_level"`
}

// SlogLevel maps the configured log level string to an slog.Level.
func (c *AppConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultAppConfig returns the configuration used when no file is given.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		History: HistoryConfig{Path: "querybench_history.sqlite"},
		Server: ServerConfig{
			RateLimitRPS:   100,
			RateLimitBurst: 200,
			CORSOrigins:    []string{"*"},
		},
		LogLevel: "info",
	}
}

// LoadAppConfig reads the YAML application configuration from path.
// An empty path returns the defaults.
func LoadAppConfig(path string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read app config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse app config %s: %w", path, err)
	}

	if cfg.Server.RateLimitRPS <= 0 {
		cfg.Server.RateLimitRPS = 100
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 200
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "querybench_history.sqlite"
	}
	return cfg, nil
}
