package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Content modes select which host implementation backs the registry.
const (
	ModePackaged  = "packaged"
	ModeAuthoring = "authoring"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Content   ContentConfig
	Breaker   BreakerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ContentConfig holds catalog, deployment and loader configuration.
type ContentConfig struct {
	Root            string        `envconfig:"CONTENT_ROOT" default:"deploy"`
	Platform        string        `envconfig:"CONTENT_PLATFORM" default:"linux"`
	Catalog         string        `envconfig:"CONTENT_CATALOG" default:"catalog"`
	Mode            string        `envconfig:"CONTENT_MODE" default:"packaged"`
	SourceRoot      string        `envconfig:"CONTENT_SOURCE_ROOT" default:"assets"`
	PrewarmQuantum  time.Duration `envconfig:"PREWARM_QUANTUM" default:"100ms"`
	DestroyDerived  bool          `envconfig:"UNLOAD_DESTROY_DERIVED" default:"false"`
	WatchDeployment bool          `envconfig:"WATCH_DEPLOYMENT" default:"true"`
}

// BreakerConfig holds the per-container circuit breaker configuration.
type BreakerConfig struct {
	Failures uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	Timeout  time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithEnvFile loads variables from envFile into the environment, without
// overriding ones already set, then calls Load. A missing file is not an error.
func LoadWithEnvFile(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}
	return Load()
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Content.Mode {
	case ModePackaged, ModeAuthoring:
	default:
		return fmt.Errorf("invalid CONTENT_MODE %q: must be %q or %q", c.Content.Mode, ModePackaged, ModeAuthoring)
	}
	if c.Content.Platform == "" {
		return errors.New("CONTENT_PLATFORM must not be empty")
	}
	if c.Content.PrewarmQuantum <= 0 {
		return fmt.Errorf("PREWARM_QUANTUM must be positive, got %s", c.Content.PrewarmQuantum)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Content: ContentConfig{
			Root:            "deploy",
			Platform:        "linux",
			Catalog:         "catalog",
			Mode:            ModePackaged,
			SourceRoot:      "assets",
			PrewarmQuantum:  100 * time.Millisecond,
			DestroyDerived:  false,
			WatchDeployment: true,
		},
		Breaker: BreakerConfig{
			Failures: 5,
			Timeout:  30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
