package types

// Capability declares how a handle's sub-resource is resolved against the
// loaded top-level object
type Capability int

const (
	// CapabilitySubObject resolves against the object's named sub-objects
	CapabilitySubObject Capability = iota
	// CapabilityFacet resolves against the typed facets attached to a composite root
	CapabilityFacet
)

// String returns the capability name
func (c Capability) String() string {
	switch c {
	case CapabilitySubObject:
		return "sub-object"
	case CapabilityFacet:
		return "facet"
	default:
		return "unknown"
	}
}

// Handle is a typed reference to an asset. T is the Go type the caller
// expects the resolved object (or sub-resource) to have.
type Handle[T any] struct {
	ID          ContentID
	LocalID     int64
	DisplayName string
	SubResource string
	Capability  Capability
}

// Key is the identity of a handle: two handles are equal when their keys are
type Key struct {
	ID      ContentID
	LocalID int64
}

// Key returns the handle identity
func (h Handle[T]) Key() Key {
	return Key{ID: h.ID, LocalID: h.LocalID}
}

// Equal reports whether two handles reference the same asset
func (h Handle[T]) Equal(other Handle[T]) bool {
	return h.Key() == other.Key()
}

// Ref drops the type parameter
func (h Handle[T]) Ref() Ref {
	return Ref{
		ID:          h.ID,
		LocalID:     h.LocalID,
		DisplayName: h.DisplayName,
	}
}

// Label returns the display name, falling back to the content id
func (h Handle[T]) Label() string {
	if h.DisplayName != "" {
		return h.DisplayName
	}
	return string(h.ID)
}

// Ref is an untyped asset reference
type Ref struct {
	ID          ContentID `json:"id"`
	LocalID     int64     `json:"local_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
}

// Key returns the reference identity
func (r Ref) Key() Key {
	return Key{ID: r.ID, LocalID: r.LocalID}
}
