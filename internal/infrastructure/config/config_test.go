package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Content config
	assert.Equal(t, "deploy", cfg.Content.Root)
	assert.Equal(t, "linux", cfg.Content.Platform)
	assert.Equal(t, ModePackaged, cfg.Content.Mode)
	assert.Equal(t, 100*time.Millisecond, cfg.Content.PrewarmQuantum)
	assert.False(t, cfg.Content.DestroyDerived)
	assert.True(t, cfg.Content.WatchDeployment)

	// Breaker config
	assert.Equal(t, uint32(5), cfg.Breaker.Failures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "127.0.0.1",
		"CONTENT_ROOT":           "/srv/content",
		"CONTENT_PLATFORM":       "android",
		"CONTENT_CATALOG":        "/srv/catalog.yaml",
		"CONTENT_MODE":           "authoring",
		"CONTENT_SOURCE_ROOT":    "/src/assets",
		"PREWARM_QUANTUM":        "250ms",
		"UNLOAD_DESTROY_DERIVED": "true",
		"WATCH_DEPLOYMENT":       "false",
		"BREAKER_FAILURES":       "2",
		"BREAKER_TIMEOUT":        "5s",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_RPS":         "500",
		"RATE_LIMIT_BURST":       "1000",
		"RATE_LIMIT_ENABLED":     "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "/srv/content", cfg.Content.Root)
	assert.Equal(t, "android", cfg.Content.Platform)
	assert.Equal(t, "/srv/catalog.yaml", cfg.Content.Catalog)
	assert.Equal(t, ModeAuthoring, cfg.Content.Mode)
	assert.Equal(t, "/src/assets", cfg.Content.SourceRoot)
	assert.Equal(t, 250*time.Millisecond, cfg.Content.PrewarmQuantum)
	assert.True(t, cfg.Content.DestroyDerived)
	assert.False(t, cfg.Content.WatchDeployment)

	assert.Equal(t, uint32(2), cfg.Breaker.Failures)
	assert.Equal(t, 5*time.Second, cfg.Breaker.Timeout)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, ModePackaged, cfg.Content.Mode)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Content.Mode = "remote" },
			wantErr: "CONTENT_MODE",
		},
		{
			name:    "empty platform",
			mutate:  func(c *Config) { c.Content.Platform = "" },
			wantErr: "CONTENT_PLATFORM",
		},
		{
			name:    "zero quantum",
			mutate:  func(c *Config) { c.Content.PrewarmQuantum = 0 },
			wantErr: "PREWARM_QUANTUM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	t.Setenv("CONTENT_MODE", "remote")

	_, err := Load()
	assert.Error(t, err)

	// LoadOrDefault falls back instead of failing
	cfg := LoadOrDefault()
	assert.Equal(t, ModePackaged, cfg.Content.Mode)
}

func TestLoadWithEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CONTENT_PLATFORM=ios\nPORT=7000\n"), 0o644))

	// Already-set variables win over the file
	t.Setenv("PORT", "7100")
	// Register cleanup for the variable the file introduces
	t.Setenv("CONTENT_PLATFORM", "")
	require.NoError(t, os.Unsetenv("CONTENT_PLATFORM"))

	cfg, err := LoadWithEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "ios", cfg.Content.Platform)
	assert.Equal(t, "7100", cfg.Server.Port)
}

func TestLoadWithMissingEnvFile(t *testing.T) {
	cfg, err := LoadWithEnvFile(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "linux", cfg.Content.Platform)
}
