// Package host defines the primitives the loader needs from whatever backs
// the content: opening a container, loading one record from it (blocking or
// as an Operation), and enumerating the sub-objects of a loaded object.
//
// Two implementations exist: packaged reads deployed .package files and
// authoring reads loose source files. The object model (Blob, Document,
// Facet) and the decoders are shared by both.
package host
