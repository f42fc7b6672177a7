package loader

import (
	"context"
	"errors"
	"reflect"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/monitoring"
	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/id"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// LoadSync returns the object for h, loading it on the calling goroutine if
// nobody has requested it yet. If a load is already in flight it waits for
// that one; a resolved id returns the cached object.
func LoadSync[T any](ctx context.Context, e *Engine, h types.Handle[T]) (T, error) {
	var zero T
	req, err := e.request(ctx, h.Ref(), monitoring.ModeSync)
	if err != nil {
		return zero, err
	}
	if err := req.Wait(ctx); err != nil {
		return zero, err
	}
	return resolve(e, h, req)
}

// LoadAsync starts loading h and returns immediately. Concurrent callers for
// the same id get the same Request.
func LoadAsync[T any](ctx context.Context, e *Engine, h types.Handle[T]) (*Request, error) {
	return e.request(ctx, h.Ref(), monitoring.ModeAsync)
}

// GetAsyncResult returns the object of a finished request. Called before the
// request finished, or for an id never requested, it logs a usage warning
// and falls back to LoadSync.
func GetAsyncResult[T any](ctx context.Context, e *Engine, h types.Handle[T]) (T, error) {
	var zero T

	req, ok := e.Request(h.ID)
	if !ok || !req.IsDone() {
		detail := "result requested before the load was issued"
		if ok {
			detail = "result requested while the load is still pending"
		}
		e.logError("Early async result", errs.EarlyResult(h.ID.String(), h.DisplayName, detail))
		return LoadSync(ctx, e, h)
	}
	if err := req.Err(); err != nil {
		return zero, err
	}
	return resolve(e, h, req)
}

// resolve applies sub-resource resolution to a finished request and checks
// the result against T.
func resolve[T any](e *Engine, h types.Handle[T], req *Request) (T, error) {
	var zero T
	root := req.result()

	obj := root
	if sub, ok := resolveSub(e.host, root, h); ok {
		obj = sub
	} else if h.SubResource != "" {
		e.logger.Debug("Sub-resource not found, using top-level object",
			zap.String("content_id", h.ID.String()),
			zap.String("display_name", h.DisplayName),
			zap.String("container", req.container),
			zap.String("sub_resource", h.SubResource),
			zap.Stringer("capability", h.Capability))
	}

	t, ok := obj.(T)
	if !ok {
		err := errs.TypeMismatch(h.ID.String(), h.DisplayName, req.container, reflect.TypeFor[T]().String(), obj)
		e.logError("Resolved object has the wrong type", err)
		return zero, err
	}
	return t, nil
}

// Batch is a set of loads fanned out together and resolved in the order the
// handles were given.
type Batch[T any] struct {
	id       id.BatchID
	engine   *Engine
	handles  []types.Handle[T]
	requests []*Request
	errs     []error
}

// LoadAsyncBatched issues every load before waiting on any of them and
// returns the batch.
func LoadAsyncBatched[T any](ctx context.Context, e *Engine, handles []types.Handle[T]) *Batch[T] {
	return fanOut(ctx, e, handles, monitoring.ModeAsync)
}

// LoadSyncBatched fans out every load, then blocks until all are resolved.
// Results are in handle order; failed slots hold the zero value and their
// errors are joined.
func LoadSyncBatched[T any](ctx context.Context, e *Engine, handles []types.Handle[T]) ([]T, error) {
	return fanOut(ctx, e, handles, monitoring.ModeSync).Wait(ctx)
}

func fanOut[T any](ctx context.Context, e *Engine, handles []types.Handle[T], mode string) *Batch[T] {
	b := &Batch[T]{
		id:       id.NewBatchID(),
		engine:   e,
		handles:  handles,
		requests: make([]*Request, len(handles)),
		errs:     make([]error, len(handles)),
	}
	for i, h := range handles {
		// Fan-out is always non-blocking so independent loads overlap
		b.requests[i], b.errs[i] = e.request(ctx, h.Ref(), monitoring.ModeAsync)
	}
	e.logger.Debug("Batch issued",
		zap.String("batch_id", b.id.String()),
		zap.String("mode", mode),
		zap.Int("size", len(handles)))
	return b
}

// ID returns the batch id.
func (b *Batch[T]) ID() id.BatchID { return b.id }

// Len returns the number of handles.
func (b *Batch[T]) Len() int { return len(b.handles) }

// IsDone reports whether every load in the batch finished.
func (b *Batch[T]) IsDone() bool {
	for _, req := range b.requests {
		if req != nil && !req.IsDone() {
			return false
		}
	}
	return true
}

// Wait resolves the batch in handle order. A slow early load delays the
// results after it even if they finished first; finished loads are read
// without blocking.
func (b *Batch[T]) Wait(ctx context.Context) ([]T, error) {
	out := make([]T, len(b.handles))
	slotErrs := make([]error, len(b.handles))
	copy(slotErrs, b.errs)

	for i, h := range b.handles {
		if slotErrs[i] != nil {
			continue
		}
		req := b.requests[i]
		if err := req.Wait(ctx); err != nil {
			slotErrs[i] = err
			if ctx.Err() != nil {
				// Context gone; the remaining slots cannot be waited for
				for j := i + 1; j < len(b.handles); j++ {
					if slotErrs[j] == nil && !b.requests[j].IsDone() {
						slotErrs[j] = ctx.Err()
					}
				}
			}
			continue
		}
		out[i], slotErrs[i] = resolve(b.engine, h, req)
	}
	return out, errors.Join(slotErrs...)
}
