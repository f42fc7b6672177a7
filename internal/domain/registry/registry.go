package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/catalog"
	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/monitoring"
	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Options configures a Registry.
type Options struct {
	Root     string // Deployment root
	Platform string
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
}

// Owner is the descriptor and record that own a content id.
type Owner struct {
	Descriptor *catalog.Descriptor
	Record     types.AssetRecord
	Container  string // Opened container name
}

// Registry owns descriptors and opened containers.
type Registry struct {
	catalog  *catalog.Catalog
	host     host.Host
	root     string
	platform string
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu         sync.RWMutex
	containers map[string]host.Container
	status     map[string]*types.ContainerStatus
	order      []string
}

// New creates a registry. Nothing is opened until Initialize.
func New(cat *catalog.Catalog, h host.Host, opts Options) *Registry {
	if cat == nil {
		cat = catalog.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		catalog:    cat,
		host:       h,
		root:       opts.Root,
		platform:   opts.Platform,
		logger:     logger,
		metrics:    opts.Metrics,
		containers: make(map[string]host.Container),
		status:     make(map[string]*types.ContainerStatus),
	}
}

// Catalog returns the registry's catalog.
func (r *Registry) Catalog() *catalog.Catalog { return r.catalog }

// Host returns the host containers are opened with.
func (r *Registry) Host() host.Host { return r.host }

// Platform returns the deployment platform.
func (r *Registry) Platform() string { return r.platform }

// Initialize rebuilds lookup tables and opens every package. An invalid
// catalog is an error; a package that fails to open is not.
func (r *Registry) Initialize(ctx context.Context) error {
	if err := r.catalog.Validate(); err != nil {
		return err
	}

	r.catalog.SetLogger(r.logger)
	for _, d := range r.catalog.Descriptors {
		// Duplicates are logged by the descriptor; the first occurrence wins
		_ = d.RefreshLookupTable()
	}
	for _, dup := range r.catalog.Duplicates() {
		err := errs.SharedContent(dup.ID.String(), dup.Descriptors)
		r.logger.Warn("Content id listed by more than one descriptor",
			zap.String("kind", string(err.Kind)),
			zap.String("content_id", err.ContentID),
			zap.Strings("descriptors", dup.Descriptors),
			zap.String("owner", err.Container),
			zap.Error(err))
	}

	var opened, failed int
	for _, d := range r.catalog.Descriptors {
		for _, packed := range d.PackageNames() {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := catalog.ContainerName(packed)

			r.mu.Lock()
			_, seen := r.status[name]
			if !seen {
				r.status[name] = &types.ContainerStatus{
					Name:       name,
					Descriptor: d.Name,
					Path:       filepath.Join(r.root, r.platform, packed),
				}
				r.order = append(r.order, name)
			}
			r.mu.Unlock()
			if seen {
				continue
			}

			if r.open(ctx, name) {
				opened++
			} else {
				failed++
			}
		}
	}

	r.logger.Info("Content registry initialized",
		zap.Int("descriptors", len(r.catalog.Descriptors)),
		zap.Int("records", r.catalog.Records()),
		zap.Int("opened", opened),
		zap.Int("unavailable", failed))
	r.updateMetrics()
	return nil
}

// open opens one package by container name and records the outcome.
func (r *Registry) open(ctx context.Context, name string) bool {
	r.mu.RLock()
	st, ok := r.status[name]
	if !ok {
		r.mu.RUnlock()
		return false
	}
	path, descriptor := st.Path, st.Descriptor
	r.mu.RUnlock()

	c, err := r.host.OpenContainer(ctx, name, path)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status[name] != st {
		// Closed while opening
		if c != nil {
			_ = c.Close(false)
		}
		return false
	}
	r.metrics.RecordContainerOpen(err == nil)
	if err != nil {
		st.Open = false
		st.Error = err.Error()
		r.logger.Warn("Container unavailable",
			zap.String("container", name),
			zap.String("descriptor", descriptor),
			zap.String("path", path),
			zap.Error(err))
		return false
	}
	r.containers[name] = c
	st.Open = true
	st.Error = ""
	st.OpenedAt = time.Now()
	r.logger.Debug("Container opened",
		zap.String("container", name),
		zap.String("path", path))
	return true
}

// FindOwner returns the first descriptor, in catalog order, that lists id.
func (r *Registry) FindOwner(id types.ContentID) (Owner, bool) {
	for _, d := range r.catalog.Descriptors {
		if rec, ok := d.Find(id); ok {
			return Owner{
				Descriptor: d,
				Record:     rec,
				Container:  catalog.ContainerName(d.PackedName(rec)),
			}, true
		}
	}
	return Owner{}, false
}

// Container returns an opened container.
func (r *Registry) Container(name string) (host.Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[name]
	return c, ok
}

// IsKnown reports whether Initialize saw a package with that container name.
func (r *Registry) IsKnown(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.status[name]
	return ok
}

// Unavailable lists containers that failed to open, in open order.
func (r *Registry) Unavailable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if !r.status[name].Open {
			out = append(out, name)
		}
	}
	return out
}

// RetryUnavailable re-attempts every package that failed to open and returns
// how many opened.
func (r *Registry) RetryUnavailable(ctx context.Context) int {
	opened := 0
	for _, name := range r.Unavailable() {
		if ctx.Err() != nil {
			break
		}
		if r.open(ctx, name) {
			r.logger.Info("Container became available", zap.String("container", name))
			opened++
		}
	}
	if opened > 0 {
		r.updateMetrics()
	}
	return opened
}

// Duplicates reports ids listed by more than one descriptor.
func (r *Registry) Duplicates() []catalog.Duplicate {
	return r.catalog.Duplicates()
}

// Release closes every opened container but keeps its package status, marked
// unavailable, so RetryUnavailable can reopen it. It returns how many
// containers were closed.
func (r *Registry) Release(destroyDerived bool) (int, error) {
	r.mu.Lock()
	containers := r.containers
	r.containers = make(map[string]host.Container)
	names := make([]string, 0, len(containers))
	for name := range containers {
		names = append(names, name)
		if st, ok := r.status[name]; ok {
			st.Open = false
			st.Error = "released"
		}
	}
	r.mu.Unlock()

	sort.Strings(names)
	var problems []error
	for _, name := range names {
		if err := containers[name].Close(destroyDerived); err != nil {
			r.logger.Error("Failed to release container", zap.String("container", name), zap.Error(err))
			problems = append(problems, err)
		}
	}

	r.logger.Info("Containers released",
		zap.Int("containers", len(names)),
		zap.Bool("destroy_derived", destroyDerived))
	r.updateMetrics()
	return len(names), errors.Join(problems...)
}

// Close releases every opened container and forgets all package status.
func (r *Registry) Close(destroyDerived bool) error {
	r.mu.Lock()
	containers := r.containers
	names := make([]string, 0, len(containers))
	for name := range containers {
		names = append(names, name)
	}
	r.containers = make(map[string]host.Container)
	r.status = make(map[string]*types.ContainerStatus)
	r.order = nil
	r.mu.Unlock()

	sort.Strings(names)
	var problems []error
	for _, name := range names {
		if err := containers[name].Close(destroyDerived); err != nil {
			r.logger.Error("Failed to close container", zap.String("container", name), zap.Error(err))
			problems = append(problems, err)
		}
	}

	r.logger.Info("Content registry closed",
		zap.Int("containers", len(names)),
		zap.Bool("destroy_derived", destroyDerived))
	r.updateMetrics()
	return errors.Join(problems...)
}

// Stats returns registry statistics.
func (r *Registry) Stats() types.RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := types.RegistryStats{
		Descriptors: len(r.catalog.Descriptors),
		Records:     r.catalog.Records(),
		Containers:  make([]types.ContainerStatus, 0, len(r.order)),
	}
	for _, name := range r.order {
		st := *r.status[name]
		if st.Open {
			stats.Open++
		} else {
			stats.Unavailable++
		}
		stats.Containers = append(stats.Containers, st)
	}
	return stats
}

func (r *Registry) updateMetrics() {
	if r.metrics == nil {
		return
	}
	s := r.Stats()
	r.metrics.SetRegistry(s.Open, s.Unavailable, s.Records)
}
