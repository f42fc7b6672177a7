package packaged

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Host opens .package files from disk.
type Host struct {
	logger *zap.Logger
}

// New creates a packaged host.
func New(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{logger: logger}
}

// OpenContainer reads the package index at path.
func (h *Host) OpenContainer(ctx context.Context, name, path string) (host.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, order, err := readIndex(f)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	h.logger.Debug("Opened package",
		zap.String("container", name),
		zap.String("path", path),
		zap.Int("entries", len(entries)))

	return &Container{name: name, path: path, entries: entries, order: order}, nil
}

// SubObjects enumerates every nested child of obj.
func (h *Host) SubObjects(obj host.Object) []host.Object {
	return host.Descendants(obj)
}

// Container is an opened package.
type Container struct {
	name    string
	path    string
	derived host.Derived

	mu      sync.RWMutex
	entries map[types.ContentID]rawEntry
	order   []types.ContentID
	closed  bool
}

func (c *Container) Name() string { return c.name }
func (c *Container) Path() string { return c.path }

// Records lists the records stored in the package, in file order.
func (c *Container) Records() []types.AssetRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.AssetRecord, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id].record)
	}
	return out
}

// Load decodes the entry stored under the record's content id.
func (c *Container) Load(ctx context.Context, record types.AssetRecord) (host.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, host.ErrClosed
	}
	entry, ok := c.entries[record.ID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", host.ErrNotFound, record.ID, c.name)
	}

	sourcePath := entry.record.Path
	if sourcePath == "" {
		sourcePath = record.Path
	}
	obj, err := host.Decode(host.ObjectName(sourcePath, record.ID.String()), sourcePath, entry.data)
	if err != nil {
		return nil, err
	}
	c.derived.Track(obj)
	return obj, nil
}

// LoadAsync runs Load on its own goroutine.
func (c *Container) LoadAsync(ctx context.Context, record types.AssetRecord) *host.Operation {
	return host.Go(ctx, func(ctx context.Context) (host.Object, error) {
		return c.Load(ctx, record)
	})
}

// Close drops the index. Closing twice is a no-op.
func (c *Container) Close(destroyDerived bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.entries = nil
	c.order = nil
	c.mu.Unlock()

	if destroyDerived {
		c.derived.DestroyAll()
	} else {
		c.derived.Forget()
	}
	return nil
}
