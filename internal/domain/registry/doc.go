// Package registry provides the content registry: it owns the catalog's
// descriptors and the containers opened from the deployment directory.
//
// Initialize rebuilds every descriptor's lookup table and opens each of its
// packages from <root>/<platform>/<packed name>. A package that fails to
// open is logged and marked unavailable; startup continues and loads
// against it fail with a resolution error. RetryUnavailable re-attempts
// those packages, for example after a deployment lands.
//
// Components:
//   - Registry: descriptor lookup, opened-container map, status
//
// Example Usage:
//
//	reg := registry.New(cat, packaged.New(logger), registry.Options{
//		Root:     "deploy",
//		Platform: "linux",
//		Logger:   logger,
//	})
//	if err := reg.Initialize(ctx); err != nil { ... }
//	owner, ok := reg.FindOwner("a1")
//	container, ok := reg.Container(owner.Container)
package registry
