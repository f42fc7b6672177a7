package catalog

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Catalog is an ordered set of descriptors. Order matters: when an id is
// listed by more than one descriptor, the earliest one owns it.
type Catalog struct {
	Descriptors []*Descriptor
}

// New creates a catalog.
func New(descriptors ...*Descriptor) *Catalog {
	return &Catalog{Descriptors: descriptors}
}

// SetLogger sets the logger of every descriptor.
func (c *Catalog) SetLogger(logger *zap.Logger) {
	for _, d := range c.Descriptors {
		d.SetLogger(logger)
	}
}

// Descriptor returns the descriptor with that name.
func (c *Catalog) Descriptor(name string) (*Descriptor, bool) {
	for _, d := range c.Descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Records returns the total number of records.
func (c *Catalog) Records() int {
	n := 0
	for _, d := range c.Descriptors {
		n += d.Len()
	}
	return n
}

// Validate checks every descriptor and rejects repeated descriptor names.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Descriptors))
	var problems []error
	for _, d := range c.Descriptors {
		if err := d.Validate(); err != nil {
			problems = append(problems, err)
			continue
		}
		if seen[d.Name] {
			problems = append(problems, errs.New(errs.KindConfiguration).
				Container(d.Name).
				Detail("descriptor name used more than once").
				Build())
		}
		seen[d.Name] = true
	}
	return errors.Join(problems...)
}

// Duplicate is a content id listed by more than one descriptor.
type Duplicate struct {
	ID          types.ContentID `json:"id"`
	Descriptors []string        `json:"descriptors"` // Catalog order; the first one wins
}

// Duplicates reports ids listed by more than one descriptor, sorted by id.
func (c *Catalog) Duplicates() []Duplicate {
	owners := make(map[types.ContentID][]string)
	for _, d := range c.Descriptors {
		d.mu.RLock()
		seen := make(map[types.ContentID]bool, len(d.Records))
		for _, rec := range d.Records {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			owners[rec.ID] = append(owners[rec.ID], d.Name)
		}
		d.mu.RUnlock()
	}

	var out []Duplicate
	for id, names := range owners {
		if len(names) > 1 {
			out = append(out, Duplicate{ID: id, Descriptors: names})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
