package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// FilePattern matches catalog files inside a catalog directory.
const FilePattern = "**/*.{yaml,yml,toml,json}"

type fileDescriptor struct {
	Name    string              `json:"name" yaml:"name" toml:"name"`
	Packing types.PackingMode   `json:"packing,omitempty" yaml:"packing,omitempty" toml:"packing,omitempty"`
	Records []types.AssetRecord `json:"records" yaml:"records" toml:"records"`
}

type file struct {
	Descriptors []fileDescriptor `json:"descriptors" yaml:"descriptors" toml:"descriptors"`
}

// Load reads a catalog file, or every catalog file when path is a directory.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.New(errs.KindConfiguration).Cause(err).Detail("catalog %s", path).Build()
	}
	if info.IsDir() {
		return LoadDir(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.KindConfiguration).Cause(err).Detail("read catalog %s", path).Build()
	}
	return Decode(filepath.Ext(path), data)
}

// LoadDir merges every catalog file under dir in sorted path order.
func LoadDir(dir string) (*Catalog, error) {
	var mu sync.Mutex
	var paths []string
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(FilePattern, filepath.ToSlash(rel)); ok {
			mu.Lock()
			paths = append(paths, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, errs.New(errs.KindConfiguration).Cause(err).Detail("scan catalog dir %s", dir).Build()
	}

	sort.Strings(paths)
	merged := New()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, errs.New(errs.KindConfiguration).Cause(err).Detail("read catalog %s", p).Build()
		}
		c, err := Decode(filepath.Ext(p), data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		merged.Descriptors = append(merged.Descriptors, c.Descriptors...)
	}
	return merged, nil
}

// Decode parses catalog data in the format named by ext (".yaml", ".yml",
// ".toml" or ".json").
func Decode(ext string, data []byte) (*Catalog, error) {
	var f file
	var err error

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".json":
		err = sonic.Unmarshal(data, &f)
	default:
		return nil, errs.New(errs.KindConfiguration).Detail("unsupported catalog format %q", ext).Build()
	}
	if err != nil {
		return nil, errs.New(errs.KindConfiguration).Cause(err).Detail("decode catalog").Build()
	}

	c := New()
	for _, fd := range f.Descriptors {
		c.Descriptors = append(c.Descriptors, NewDescriptor(fd.Name, fd.Packing, fd.Records...))
	}
	return c, nil
}

// Encode renders c in the format named by ext.
func Encode(ext string, c *Catalog) ([]byte, error) {
	var f file
	for _, d := range c.Descriptors {
		d.mu.RLock()
		records := append([]types.AssetRecord(nil), d.Records...)
		d.mu.RUnlock()
		f.Descriptors = append(f.Descriptors, fileDescriptor{Name: d.Name, Packing: d.Packing, Records: records})
	}

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Marshal(f)
	case ".toml":
		return toml.Marshal(f)
	case ".json":
		return sonic.ConfigStd.MarshalIndent(f, "", "  ")
	default:
		return nil, errs.New(errs.KindConfiguration).Detail("unsupported catalog format %q", ext).Build()
	}
}

// Save writes c to path; the extension selects the format.
func Save(path string, c *Catalog) error {
	data, err := Encode(filepath.Ext(path), c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
