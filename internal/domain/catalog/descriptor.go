package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Descriptor is one container's manifest.
type Descriptor struct {
	Name    string
	Packing types.PackingMode
	Records []types.AssetRecord

	mu     sync.RWMutex
	lookup map[types.ContentID]int
	dirty  bool
	logger *zap.Logger
}

// NewDescriptor creates a descriptor with the given records.
func NewDescriptor(name string, packing types.PackingMode, records ...types.AssetRecord) *Descriptor {
	return &Descriptor{
		Name:    name,
		Packing: packing,
		Records: records,
	}
}

// SetLogger sets where duplicate ids are reported.
func (d *Descriptor) SetLogger(logger *zap.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = logger
}

// Add appends a record and invalidates the lookup table.
func (d *Descriptor) Add(records ...types.AssetRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Records = append(d.Records, records...)
	d.dirty = true
}

// MarkDirty forces a rebuild on the next query. Call it after mutating
// Records directly.
func (d *Descriptor) MarkDirty() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = true
}

// Len returns the number of records.
func (d *Descriptor) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.Records)
}

// RefreshLookupTable rebuilds the id index. A duplicate id is a
// configuration error: it is logged, the first occurrence keeps the slot,
// and all duplicates are returned joined.
func (d *Descriptor) RefreshLookupTable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rebuild()
}

func (d *Descriptor) rebuild() error {
	lookup := make(map[types.ContentID]int, len(d.Records))
	var dups []error

	for i, rec := range d.Records {
		if first, exists := lookup[rec.ID]; exists {
			err := errs.DuplicateContent(d.Name, rec.ID.String(), first, i)
			if d.logger != nil {
				d.logger.Error("Duplicate content id in descriptor",
					zap.String("container", d.Name),
					zap.String("content_id", rec.ID.String()),
					zap.Int("first_index", first),
					zap.Int("duplicate_index", i))
			}
			dups = append(dups, err)
			continue
		}
		lookup[rec.ID] = i
	}

	d.lookup = lookup
	d.dirty = false
	return errors.Join(dups...)
}

func (d *Descriptor) index(id types.ContentID) (int, bool) {
	d.mu.RLock()
	if d.lookup != nil && !d.dirty {
		i, ok := d.lookup[id]
		d.mu.RUnlock()
		return i, ok
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookup == nil || d.dirty {
		_ = d.rebuild()
	}
	i, ok := d.lookup[id]
	return i, ok
}

// Find returns the record for id, rebuilding the lookup table first if it
// is stale.
func (d *Descriptor) Find(id types.ContentID) (types.AssetRecord, bool) {
	i, ok := d.index(id)
	if !ok {
		return types.AssetRecord{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.Records[i], true
}

// Contains reports whether the descriptor lists id.
func (d *Descriptor) Contains(id types.ContentID) bool {
	_, ok := d.index(id)
	return ok
}

// PackedName returns the package file name that holds record:
//
//	shared:        <name>.package
//	per_asset:     <lowercase content id>.package
//	per_category:  <name>_<category>.package
func (d *Descriptor) PackedName(record types.AssetRecord) string {
	return PackedName(d.Name, d.Packing, record)
}

// PackagePath returns <root>/<platform>/<packed name> for record.
func (d *Descriptor) PackagePath(root, platform string, record types.AssetRecord) string {
	return filepath.Join(root, platform, d.PackedName(record))
}

// PackageNames returns the distinct packed names in record order. A shared
// descriptor always has exactly one, even when it has no records.
func (d *Descriptor) PackageNames() []string {
	if d.Packing.OrDefault() == types.PackShared {
		return []string{PackedName(d.Name, d.Packing, types.AssetRecord{})}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, rec := range d.Records {
		n := PackedName(d.Name, d.Packing, rec)
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

// Validate checks the descriptor's static configuration.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errs.New(errs.KindConfiguration).Detail("descriptor has no name").Build()
	}
	if !d.Packing.Valid() {
		return errs.New(errs.KindConfiguration).
			Container(d.Name).
			Detail("unknown packing mode %q", d.Packing).
			Build()
	}
	for i, rec := range d.Records {
		if rec.ID.IsZero() {
			return errs.New(errs.KindConfiguration).
				Container(d.Name).
				Detail("record %d (%s) has no content id", i, rec.Path).
				Build()
		}
	}
	return nil
}

// PackedName is the pure naming rule behind Descriptor.PackedName.
func PackedName(name string, packing types.PackingMode, record types.AssetRecord) string {
	switch packing.OrDefault() {
	case types.PackPerAsset:
		return strings.ToLower(record.ID.String()) + types.PackageExt
	case types.PackPerCategory:
		return fmt.Sprintf("%s_%s%s", name, record.CategoryOrDefault(), types.PackageExt)
	default:
		return name + types.PackageExt
	}
}

// ContainerName strips the package extension from a packed name.
func ContainerName(packedName string) string {
	return strings.TrimSuffix(packedName, types.PackageExt)
}
