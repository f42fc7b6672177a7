// Package authoring implements host.Host over loose source files. Every
// container is a view over the same source root and loads a record from
// <root>/<record.Path>.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Host serves containers straight from a source tree.
type Host struct {
	root   string
	logger *zap.Logger
}

// New creates an authoring host over root.
func New(root string, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{root: root, logger: logger}
}

// OpenContainer succeeds as long as the source root is a directory; the
// package path is ignored.
func (h *Host) OpenContainer(ctx context.Context, name, _ string) (host.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(h.root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", h.root)
	}
	h.logger.Debug("Opened source view", zap.String("container", name), zap.String("root", h.root))
	return &Container{name: name, root: h.root}, nil
}

// SubObjects enumerates every nested child of obj.
func (h *Host) SubObjects(obj host.Object) []host.Object {
	return host.Descendants(obj)
}

// Container is a named view over the source root.
type Container struct {
	name    string
	root    string
	derived host.Derived
	closed  atomic.Bool
}

func (c *Container) Name() string { return c.name }
func (c *Container) Path() string { return c.root }

// Load reads and decodes <root>/<record.Path>.
func (c *Container) Load(ctx context.Context, record types.AssetRecord) (host.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, host.ErrClosed
	}
	if record.Path == "" {
		return nil, fmt.Errorf("%w: %s has no source path", host.ErrNotFound, record.ID)
	}

	full := filepath.Join(c.root, filepath.FromSlash(record.Path))
	if !strings.HasPrefix(full, filepath.Clean(c.root)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("%w: %s escapes the source root", host.ErrNotFound, record.Path)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", host.ErrNotFound, record.Path)
		}
		return nil, err
	}

	obj, err := host.Decode(host.ObjectName(record.Path, record.ID.String()), record.Path, data)
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

// Close marks the view closed.
func (c *Container) Close(destroyDerived bool) error {
	if c.closed.Swap(true) {
		return nil
	}
	if destroyDerived {
		c.derived.DestroyAll()
	} else {
		c.derived.Forget()
	}
	return nil
}
