package loader

import (
	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// strategy finds a sub-resource of root that satisfies match.
type strategy func(h host.Host, root host.Object, name string, match func(host.Object) bool) (host.Object, bool)

var strategies = map[types.Capability]strategy{
	types.CapabilitySubObject: subObject,
	types.CapabilityFacet:     facet,
}

// subObject returns the first sub-object with exactly that name and a
// matching type.
func subObject(h host.Host, root host.Object, name string, match func(host.Object) bool) (host.Object, bool) {
	if name == "" {
		return nil, false
	}
	for _, obj := range h.SubObjects(root) {
		if obj.Name() == name && match(obj) {
			return obj, true
		}
	}
	return nil, false
}

// facet returns a matching facet of a composite root. An exact name match
// wins; otherwise the first facet of the right type.
func facet(_ host.Host, root host.Object, name string, match func(host.Object) bool) (host.Object, bool) {
	c, ok := root.(host.Composite)
	if !ok {
		return nil, false
	}
	var first host.Object
	for _, f := range c.Facets() {
		if !match(f) {
			continue
		}
		if name == "" || f.Name() == name {
			return f, true
		}
		if first == nil {
			first = f
		}
	}
	return first, first != nil
}

func matches[T any](obj host.Object) bool {
	_, ok := obj.(T)
	return ok
}

// resolveSub applies the handle's strategy. With no sub-resource requested
// it reports false and the top-level object is used.
func resolveSub[T any](h host.Host, root host.Object, handle types.Handle[T]) (host.Object, bool) {
	if handle.SubResource == "" && handle.Capability != types.CapabilityFacet {
		return nil, false
	}
	s, ok := strategies[handle.Capability]
	if !ok {
		return nil, false
	}
	return s(h, root, handle.SubResource, matches[T])
}
