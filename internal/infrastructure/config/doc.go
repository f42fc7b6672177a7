// Package config provides 12-factor configuration management for the asset
// service.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional .env file is merged in first (LoadWithEnvFile); variables that
// are already set win.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Content: deployment root, platform, catalog location, host mode,
//     prewarm quantum and unload behaviour
//   - Breaker: per-container circuit breaker thresholds
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Environment Variables:
//   - PORT, HOST
//   - CONTENT_ROOT, CONTENT_PLATFORM, CONTENT_CATALOG, CONTENT_MODE,
//     CONTENT_SOURCE_ROOT, PREWARM_QUANTUM, UNLOAD_DESTROY_DERIVED,
//     WATCH_DEPLOYMENT
//   - BREAKER_FAILURES, BREAKER_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
