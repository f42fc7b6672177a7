package types

import "strings"

// ContentID identifies one logical asset independent of its location
type ContentID string

// String returns the raw id
func (id ContentID) String() string { return string(id) }

// IsZero reports whether the id is empty
func (id ContentID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// DefaultCategory is used when a record carries no category
const DefaultCategory = "default"

// PackageExt is the file extension of a packed container
const PackageExt = ".package"

// AssetRecord is one entry of a container descriptor
type AssetRecord struct {
	ID       ContentID `json:"id" yaml:"id" toml:"id"`
	Path     string    `json:"path" yaml:"path" toml:"path"` // Last-known container-relative path
	Category string    `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
}

// CategoryOrDefault returns the record's category, or DefaultCategory
func (r AssetRecord) CategoryOrDefault() string {
	if r.Category == "" {
		return DefaultCategory
	}
	return r.Category
}

// PackingMode selects how a descriptor's assets are split into package files
type PackingMode string

const (
	PackShared      PackingMode = "shared"       // One file per descriptor
	PackPerAsset    PackingMode = "per_asset"    // One file per asset, named by content id
	PackPerCategory PackingMode = "per_category" // One file per category
)

// Valid reports whether m is a known packing mode. The empty mode is valid
// and means PackShared.
func (m PackingMode) Valid() bool {
	switch m {
	case "", PackShared, PackPerAsset, PackPerCategory:
		return true
	}
	return false
}

// OrDefault returns m, or PackShared when m is empty
func (m PackingMode) OrDefault() PackingMode {
	if m == "" {
		return PackShared
	}
	return m
}
