// Package middleware provides the gin middleware of the asset service:
// CORS, per-client and global rate limiting, and request id logging.
package middleware
