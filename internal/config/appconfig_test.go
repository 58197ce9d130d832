package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadAppConfig("")
	require.NoError(t, err)

	assert.Equal(t, "querybench_history.sqlite", cfg.History.Path)
	assert.False(t, cfg.History.Disabled)
	assert.Equal(t, float64(100), cfg.Server.RateLimitRPS)
	assert.Equal(t, 200, cfg.Server.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadAppConfig_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
backend:
  database_path: /data/bench.duckdb
  default_catalog: analytics
history:
  path: /data/history.sqlite
  disabled: true
server:
  rate_limit_rps: 10
  rate_limit_burst: 20
  cors_origins:
    - https://bench.example.com
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/bench.duckdb", cfg.Backend.DatabasePath)
	assert.Equal(t, "analytics", cfg.Backend.DefaultCatalog)
	assert.Equal(t, "/data/history.sqlite", cfg.History.Path)
	assert.True(t, cfg.History.Disabled)
	assert.Equal(t, float64(10), cfg.Server.RateLimitRPS)
	assert.Equal(t, 20, cfg.Server.RateLimitBurst)
	assert.Equal(t, []string{"https://bench.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadAppConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.Equal(t, "querybench_history.sqlite", cfg.History.Path)
	assert.Equal(t, float64(100), cfg.Server.RateLimitRPS)
}

func TestLoadAppConfig_MissingFile(t *testing.T) {
	_, err := LoadAppConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read app config")
}

func TestLoadAppConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := LoadAppConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse app config")
}

func TestSlogLevel_Mapping(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &AppConfig{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.level)
	}
}
