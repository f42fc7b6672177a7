// Package errors provides the structured error type shared by the catalog,
// registry and loader.
//
// Errors are categorized by Kind:
//   - configuration: the authored catalog is inconsistent (duplicate content id)
//   - resolution: no container owns the id, or the owner is not open
//   - load: the host returned nothing, or the object has the wrong type
//   - usage: an API was called out of order (GetAsyncResult before completion)
//
// Every Error carries the content id, display name and container it concerns
// so callers can log a single line with full context:
//
//	err := errors.New(errors.KindResolution).
//		Content("a1", "Star Icon").
//		Container("ui").
//		Detail("container not open").
//		Build()
//
// Kinds match sentinels through errors.Is:
//
//	if errors.Is(err, errors.ErrResolution) { ... }
package errors
