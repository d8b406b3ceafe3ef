package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./data/printq.db", cfg.Database.Path)
	assert.Equal(t, 15*time.Minute, cfg.Retention.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Retention.MaxAge)
	assert.False(t, cfg.Webhooks.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
  allowed_origin: "http://dashboard.example"
database:
  path: "/var/lib/printq/printq.db"
retention:
  sweep_interval: 5m
  max_age: 48h
webhooks:
  enabled: true
  worker_count: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://dashboard.example", cfg.Server.AllowedOrigin)
	assert.Equal(t, "/var/lib/printq/printq.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Retention.SweepInterval)
	assert.Equal(t, 48*time.Hour, cfg.Retention.MaxAge)
	assert.True(t, cfg.Webhooks.Enabled)
	assert.Equal(t, 5, cfg.Webhooks.WorkerCount)
	// Untouched sections keep their defaults.
	assert.Equal(t, "./uploads", cfg.Uploads.Dir)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRINTQ_PORT", "7070")
	t.Setenv("PRINTQ_DB_PATH", "/tmp/override.db")
	t.Setenv("PRINTQ_UPLOADS_DIR", "/tmp/uploads")
	t.Setenv("PRINTQ_ALLOWED_ORIGIN", "http://env.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/uploads", cfg.Uploads.Dir)
	assert.Equal(t, "http://env.example", cfg.Server.AllowedOrigin)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"empty uploads dir", func(c *Config) { c.Uploads.Dir = "" }},
		{"zero sweep interval", func(c *Config) { c.Retention.SweepInterval = 0 }},
		{"zero max age", func(c *Config) { c.Retention.MaxAge = 0 }},
		{"zero webhook workers", func(c *Config) { c.Webhooks.WorkerCount = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
