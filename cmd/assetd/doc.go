// Package main is the entry point of the asset service.
//
// assetd loads a content catalog, opens the deployed packages for one
// platform and serves loads, prewarm requests and diagnostics over HTTP.
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - An optional .env file (-env), never overriding the environment
//   - CLI flags override the port and content mode
//
// Usage:
//
//	# Packaged deployment
//	CONTENT_ROOT=deploy CONTENT_PLATFORM=linux ./assetd
//
//	# Authoring mode over loose sources, colored debug logs
//	./assetd -mode authoring -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown (pending loads complete first)
package main
