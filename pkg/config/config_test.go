package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittocache/internal/bytesize"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Cache.Name)
	assert.Equal(t, 50*bytesize.MiB, cfg.Cache.ByteLimit)
	assert.Equal(t, 720*time.Hour, cfg.Cache.AgeLimit)
	assert.Equal(t, 8420, cfg.Server.Port)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: DEBUG
  format: json
cache:
  name: thumbnails
  byte_limit: 1Gi
  age_limit: 48h
  ttl: true
server:
  port: 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "thumbnails", cfg.Cache.Name)
	assert.Equal(t, bytesize.GiB, cfg.Cache.ByteLimit)
	assert.Equal(t, 48*time.Hour, cfg.Cache.AgeLimit)
	assert.True(t, cfg.Cache.TTL)
	assert.Equal(t, 9000, cfg.Server.Port)

	// Unset fields keep defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadNumericByteLimit(t *testing.T) {
	path := writeConfig(t, `
cache:
  byte_limit: 1048576
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, bytesize.MiB, cfg.Cache.ByteLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "LOUD" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty cache name", func(c *Config) { c.Cache.Name = "" }},
		{"negative age limit", func(c *Config) { c.Cache.AgeLimit = -time.Hour }},
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: SHOUTING
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Cache.Name = "artifacts"
	cfg.Cache.TTL = true

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "artifacts", loaded.Cache.Name)
	assert.True(t, loaded.Cache.TTL)
}
