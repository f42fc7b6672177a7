package http

import (
	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/digest"
)

// ObjectView is the JSON description of a loaded object. Blob bytes are
// never returned, only their size and type.
type ObjectView struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	MIME     string         `json:"mime,omitempty"`
	Size     int            `json:"size,omitempty"`
	Digest   string         `json:"digest,omitempty"` // Blob bytes, or the document view
	Kind     string         `json:"kind,omitempty"`
	Props    map[string]any `json:"props,omitempty"`
	Children []string       `json:"children,omitempty"`
	Facets   []string       `json:"facets,omitempty"`
}

// Describe summarizes obj
func Describe(obj host.Object) ObjectView {
	v := ObjectView{Name: obj.Name(), Type: "object"}
	switch o := obj.(type) {
	case *host.Blob:
		v.Type = "blob"
		v.MIME = o.MIME()
		v.Size = o.Size()
		v.Digest = digest.Bytes(o.Bytes())
	case *host.Document:
		v.Type = "document"
		v.Kind = o.Kind()
		v.Props = o.Props()
		v.Children = names(o.Children())
		v.Facets = names(o.Facets())
		// Props that do not encode leave the digest empty
		if d, err := digest.JSON(v); err == nil {
			v.Digest = d
		}
	case *host.Facet:
		v.Type = "facet"
		v.Kind = o.Kind()
		v.Props = o.Props()
	}
	return v
}

func names(objs []host.Object) []string {
	if len(objs) == 0 {
		return nil
	}
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Name()
	}
	return out
}
