package host

import (
	"sync"
	"sync/atomic"
)

// Blob is an opaque binary asset.
type Blob struct {
	name string
	mime string
	data []byte

	destroyed atomic.Bool
}

// NewBlob creates a blob.
func NewBlob(name, mime string, data []byte) *Blob {
	return &Blob{name: name, mime: mime, data: data}
}

func (b *Blob) Name() string    { return b.name }
func (b *Blob) MIME() string    { return b.mime }
func (b *Blob) Bytes() []byte   { return b.data }
func (b *Blob) Size() int       { return len(b.data) }
func (b *Blob) Destroyed() bool { return b.destroyed.Load() }

// Destroy marks the blob destroyed.
func (b *Blob) Destroy() {
	b.destroyed.Store(true)
}

// Document is a structured asset with named children and facets.
type Document struct {
	name     string
	kind     string
	props    map[string]any
	children []Object
	facets   []Object

	destroyed atomic.Bool
}

// NewDocument creates a document.
func NewDocument(name, kind string, props map[string]any, children, facets []Object) *Document {
	return &Document{name: name, kind: kind, props: props, children: children, facets: facets}
}

func (d *Document) Name() string          { return d.name }
func (d *Document) Kind() string          { return d.kind }
func (d *Document) Props() map[string]any { return d.props }
func (d *Document) Children() []Object    { return d.children }
func (d *Document) Facets() []Object      { return d.facets }
func (d *Document) Destroyed() bool       { return d.destroyed.Load() }

// Destroy marks the document and its children destroyed.
func (d *Document) Destroy() {
	if d.destroyed.Swap(true) {
		return
	}
	for _, child := range d.children {
		if ds, ok := child.(Destroyer); ok {
			ds.Destroy()
		}
	}
}

// Facet is a typed attachment of a composite object.
type Facet struct {
	name  string
	kind  string
	props map[string]any
}

// NewFacet creates a facet.
func NewFacet(name, kind string, props map[string]any) *Facet {
	return &Facet{name: name, kind: kind, props: props}
}

func (f *Facet) Name() string          { return f.name }
func (f *Facet) Kind() string          { return f.kind }
func (f *Facet) Props() map[string]any { return f.props }

// Derived tracks the objects a container produced so Close can destroy them.
type Derived struct {
	mu      sync.Mutex
	objects []Destroyer
}

// Track records obj if it can be destroyed.
func (d *Derived) Track(obj Object) {
	ds, ok := obj.(Destroyer)
	if !ok {
		return
	}
	d.mu.Lock()
	d.objects = append(d.objects, ds)
	d.mu.Unlock()
}

// DestroyAll destroys and forgets every tracked object.
func (d *Derived) DestroyAll() int {
	d.mu.Lock()
	objects := d.objects
	d.objects = nil
	d.mu.Unlock()

	for _, obj := range objects {
		obj.Destroy()
	}
	return len(objects)
}

// Forget drops tracked objects without destroying them.
func (d *Derived) Forget() {
	d.mu.Lock()
	d.objects = nil
	d.mu.Unlock()
}
