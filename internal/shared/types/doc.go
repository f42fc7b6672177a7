// Package types provides shared data structures for the asset catalog.
//
// Core Types:
//   - ContentID: stable opaque identifier of one logical asset
//   - AssetRecord: one catalog entry (content id, last-known path, category)
//   - PackingMode: how a container's assets map onto package files
//   - Handle: typed reference to an asset, optionally naming a sub-resource
//   - Ref: the untyped key of a Handle, used by the prewarm queue
//
// Registry Types:
//   - ContainerStatus, RegistryStats: open/unavailable container summary
//
// Example Usage:
//
//	h := types.Handle[*host.Blob]{
//	    ID:          "a1",
//	    DisplayName: "Star Icon",
//	}
//	blob, err := loader.LoadSync(ctx, engine, h)
package types
