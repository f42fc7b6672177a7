// Package loader is the asset cache and the public load surface.
//
// Every content id moves through NotRequested, Pending and Resolved (or
// Failed). At most one host load per id is ever in flight: the pending
// request is installed in the cache before the host is called, so every
// later caller, sync or async, joins it instead of loading again.
//
// Loads are typed through package-level generic functions:
//
//	star, err := loader.LoadSync(ctx, engine, types.Handle[*host.Document]{ID: "a1"})
//
//	req, err := loader.LoadAsync(ctx, engine, handle)
//	_ = req.Wait(ctx)
//	obj, err := loader.GetAsyncResult(ctx, engine, handle)
//
//	objs, err := loader.LoadSyncBatched(ctx, engine, handles)
//
// A handle with a sub-resource name resolves against the loaded object
// through the strategy for its capability (sub-objects or facets); only the
// top-level object is cached.
package loader
