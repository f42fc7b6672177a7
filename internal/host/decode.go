package host

import (
	"fmt"
	"path"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

type documentSpec struct {
	Name     string         `json:"name" yaml:"name" toml:"name"`
	Kind     string         `json:"kind" yaml:"kind" toml:"kind"`
	Props    map[string]any `json:"props" yaml:"props" toml:"props"`
	Children []documentSpec `json:"children" yaml:"children" toml:"children"`
	Facets   []facetSpec    `json:"facets" yaml:"facets" toml:"facets"`
}

type facetSpec struct {
	Name  string         `json:"name" yaml:"name" toml:"name"`
	Kind  string         `json:"kind" yaml:"kind" toml:"kind"`
	Props map[string]any `json:"props" yaml:"props" toml:"props"`
}

// IsDocument reports whether a source path decodes to a Document.
func IsDocument(sourcePath string) bool {
	switch strings.ToLower(path.Ext(sourcePath)) {
	case ".json", ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// ObjectName derives the top-level object name from a source path: the base
// name without extension. An empty path falls back to fallback.
func ObjectName(sourcePath, fallback string) string {
	if sourcePath == "" {
		return fallback
	}
	base := path.Base(sourcePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Decode turns raw bytes into an object. The source path's extension selects
// the decoder; anything that is not a document becomes a Blob with a sniffed
// MIME type.
func Decode(name, sourcePath string, data []byte) (Object, error) {
	if !IsDocument(sourcePath) {
		return NewBlob(name, mimetype.Detect(data).String(), data), nil
	}

	var spec documentSpec
	var err error
	switch strings.ToLower(path.Ext(sourcePath)) {
	case ".json":
		err = sonic.Unmarshal(data, &spec)
	case ".toml":
		err = toml.Unmarshal(data, &spec)
	default:
		err = yaml.Unmarshal(data, &spec)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", sourcePath, err)
	}

	if spec.Name == "" {
		spec.Name = name
	}
	return buildDocument(spec), nil
}

func buildDocument(spec documentSpec) *Document {
	children := make([]Object, 0, len(spec.Children))
	for _, c := range spec.Children {
		children = append(children, buildDocument(c))
	}
	facets := make([]Object, 0, len(spec.Facets))
	for _, f := range spec.Facets {
		facets = append(facets, NewFacet(f.Name, f.Kind, f.Props))
	}
	return NewDocument(spec.Name, spec.Kind, spec.Props, children, facets)
}
