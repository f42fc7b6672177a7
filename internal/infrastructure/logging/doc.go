// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a named child logger (Component) and never reach for a
// global. Library code that is handed a nil *zap.Logger falls back to OrNop.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	engine := loader.New(reg, loader.Options{Logger: logger.Component("loader")})
//	logger.Error("Failed to open container", zap.String("container", "ui"), zap.Error(err))
package logging
