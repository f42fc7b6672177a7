package host

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

var (
	// ErrNotFound is returned when a container has no entry for a record.
	ErrNotFound = errors.New("asset not found in container")
	// ErrClosed is returned by loads against a closed container.
	ErrClosed = errors.New("container closed")
	// ErrPanic wraps a panic recovered from a host load.
	ErrPanic = errors.New("host load panicked")
)

// Object is a loaded runtime resource.
type Object interface {
	Name() string
}

// Parent is an object with named sub-objects.
type Parent interface {
	Object
	Children() []Object
}

// Composite is an object with attached facets.
type Composite interface {
	Object
	Facets() []Object
}

// Destroyer is implemented by objects that hold state a container can
// release when it is closed with destroyDerived.
type Destroyer interface {
	Destroy()
}

// Container is an opened package.
type Container interface {
	Name() string
	Path() string
	// Load blocks until the record's object is decoded.
	Load(ctx context.Context, record types.AssetRecord) (Object, error)
	// LoadAsync starts a load and returns immediately.
	LoadAsync(ctx context.Context, record types.AssetRecord) *Operation
	// Close releases the container. With destroyDerived, objects it
	// produced are destroyed as well.
	Close(destroyDerived bool) error
}

// Host opens containers and enumerates sub-objects.
type Host interface {
	OpenContainer(ctx context.Context, name, path string) (Container, error)
	SubObjects(obj Object) []Object
}

// Descendants returns every sub-object below obj, depth first, in
// declaration order. obj itself is not included.
func Descendants(obj Object) []Object {
	p, ok := obj.(Parent)
	if !ok {
		return nil
	}
	var out []Object
	for _, child := range p.Children() {
		out = append(out, child)
		out = append(out, Descendants(child)...)
	}
	return out
}
