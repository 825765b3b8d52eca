package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.Detection.Interval)
	assert.Equal(t, 10*time.Second, cfg.Detection.InitialDelay)
	assert.Equal(t, "security", cfg.Detection.AlertPolicy)
	assert.NotEmpty(t, cfg.Warnings())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DETECTION_INTERVAL", "5m")
	t.Setenv("ALERT_POLICY", "standard")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.Detection.Interval)
	assert.Equal(t, "standard", cfg.Detection.AlertPolicy)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT: \"9090\"\nMETRICS_PREFIX: shop\n"), 0o600))

	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "shop", cfg.MetricsPrefix)
}

func TestLoadMissingYAMLFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JWTSecret: testSecret,
			DBDriver:  "postgres",
			Detection: DetectionConfig{Interval: time.Minute, AlertPolicy: "security"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }},
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }},
		{"zero interval", func(c *Config) { c.Detection.Interval = 0 }},
		{"negative delay", func(c *Config) { c.Detection.InitialDelay = -time.Second }},
		{"unknown policy", func(c *Config) { c.Detection.AlertPolicy = "loud" }},
		{"unknown timezone", func(c *Config) { c.Detection.Timezone = "Mars/Olympus" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDetectionLocation(t *testing.T) {
	loc, err := DetectionConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = DetectionConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}
