// Package http provides the HTTP handlers of the asset service.
//
// Endpoints:
//   - GET  /health, GET /: liveness and cache/registry summary
//   - GET  /assets/:id: synchronous load (?sub=name, ?facet=1, ?name=display)
//   - GET  /assets/:id/status: whether the id was requested and is ready
//   - POST /assets/:id/load: asynchronous load, returns the request id
//   - POST /prewarm: queue ids for the next prewarm drain
//   - POST /cache/unload: drop the cache (?destroy=1 destroys derived objects,
//     ?release=1 also closes containers)
//   - GET  /containers, POST /containers/retry: package status and reopen
//   - GET  /diagnostics: engine snapshot (?format=text for the text dump)
//   - GET  /metrics/json: aggregated metric snapshot
package http
