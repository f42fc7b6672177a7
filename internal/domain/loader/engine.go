package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/prewarm"
	"github.com/GriffinCanCode/assetcatalog/internal/domain/registry"
	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/resilience"
	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// State of one content id in the cache.
type State int

const (
	StateNotRequested State = iota
	StatePending
	StateResolved
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateNotRequested:
		return "not-requested"
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// latencyWindow bounds the samples kept for diagnostics.
const latencyWindow = 512

// Options configures an Engine.
type Options struct {
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	// Breaker settings for the per-container circuit breakers. A missing
	// asset never counts as a container failure.
	Breaker resilience.Settings
}

type entry struct {
	id          types.ContentID
	displayName string
	container   string
	request     *Request
	object      host.Object
	err         error
	requestedAt time.Time
	resolvedAt  time.Time
}

func (e *entry) state() State {
	switch {
	case !e.request.IsDone():
		return StatePending
	case e.object != nil:
		return StateResolved
	default:
		return StateFailed
	}
}

// Engine is the asset cache and loader.
type Engine struct {
	registry *registry.Registry
	host     host.Host
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	breakers *resilience.Group

	mu        sync.Mutex
	entries   map[types.ContentID]*entry
	pending   int
	latencies []float64
	latNext   int
	scheduler *prewarm.Scheduler
}

// New creates an engine over an initialized registry.
func New(reg *registry.Registry, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := opts.Breaker
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, host.ErrNotFound)
		}
	}
	return &Engine{
		registry: reg,
		host:     reg.Host(),
		logger:   logger,
		metrics:  opts.Metrics,
		breakers: resilience.NewGroup(settings),
		entries:  make(map[types.ContentID]*entry),
	}
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// AttachScheduler sets the scheduler RequestPrewarm feeds and Shutdown
// stops.
func (e *Engine) AttachScheduler(s *prewarm.Scheduler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler = s
}

// request returns the in-flight or finished request for ref, issuing a host
// load if there is none (or the last one failed). Resolution errors do not
// create a cache entry.
func (e *Engine) request(ctx context.Context, ref types.Ref, mode string) (*Request, error) {
	if ref.ID.IsZero() {
		err := errs.EmptyContentID(ref.DisplayName)
		e.logError("Empty content id", err)
		return nil, err
	}

	e.mu.Lock()
	ent, exists := e.entries[ref.ID]
	if exists {
		switch ent.state() {
		case StatePending:
			e.mu.Unlock()
			e.metrics.IncDedupJoins()
			return ent.request, nil
		case StateResolved:
			e.mu.Unlock()
			e.metrics.IncCacheHits()
			return ent.request, nil
		}
		// Failed: issue a fresh load below
	}

	owner, ok := e.registry.FindOwner(ref.ID)
	if !ok {
		e.mu.Unlock()
		err := errs.NoContainer(ref.ID.String(), ref.DisplayName)
		e.logError("Content id not found", err)
		return nil, err
	}
	container, ok := e.registry.Container(owner.Container)
	if !ok {
		e.mu.Unlock()
		err := errs.ContainerNotOpen(ref.ID.String(), ref.DisplayName, owner.Container)
		e.logError("Container not open", err)
		return nil, err
	}

	req := newRequest(ref.ID, owner.Container)
	if !exists {
		ent = &entry{id: ref.ID, displayName: ref.DisplayName}
		e.entries[ref.ID] = ent
	}
	ent.container = owner.Container
	ent.request = req
	ent.object = nil
	ent.err = nil
	ent.requestedAt = req.issuedAt
	e.pending++
	e.metrics.SetCache(len(e.entries), e.pending)
	e.mu.Unlock()

	e.issue(ctx, ent, req, owner.Record, container, mode)
	return req, nil
}

// issue calls the host. Loads are never cancelled once issued, so the host
// sees a context detached from the caller's cancellation. A host panic fails
// the request instead of leaving it pending.
func (e *Engine) issue(ctx context.Context, ent *entry, req *Request, record types.AssetRecord, c host.Container, mode string) {
	ctx = context.WithoutCancel(ctx)

	report, err := e.breakers.Get(req.container).Allow()
	if err != nil {
		e.finish(ent, req, nil, err)
		return
	}

	timer := monitoring.NewTimer(e.metrics, mode, req.container)
	var settled atomic.Bool
	settle := func(obj host.Object, err error) bool {
		if !settled.CompareAndSwap(false, true) {
			return false
		}
		report(err)
		timer.Stop(err)
		e.finish(ent, req, obj, err)
		return true
	}
	defer recoverHost(settle)

	if mode == monitoring.ModeSync {
		settle(c.Load(ctx, record))
		return
	}

	op := c.LoadAsync(ctx, record)
	go func() {
		defer recoverHost(settle)
		settle(op.Wait(ctx))
	}()
}

// recoverHost turns a host panic into a failed load. A panic raised after
// the load settled is not the host's and is re-raised. It must be deferred
// directly.
func recoverHost(settle func(host.Object, error) bool) {
	if p := recover(); p != nil {
		if !settle(nil, fmt.Errorf("%w: %v", host.ErrPanic, p)) {
			panic(p)
		}
	}
}

// finish stores the outcome in the entry, then completes the request.
func (e *Engine) finish(ent *entry, req *Request, obj host.Object, err error) {
	if err == nil && obj == nil {
		err = errs.LoadFailed(req.contentID.String(), ent.displayName, req.container, nil)
	} else if err != nil {
		err = errs.LoadFailed(req.contentID.String(), ent.displayName, req.container, err)
		obj = nil
	}

	e.mu.Lock()
	e.pending--
	if cur, ok := e.entries[req.contentID]; ok && cur == ent && ent.request == req {
		ent.object = obj
		ent.err = err
		ent.resolvedAt = time.Now()
	}
	e.recordLatency(time.Since(req.issuedAt))
	e.metrics.SetCache(len(e.entries), e.pending)
	e.mu.Unlock()

	req.complete(obj, err)

	if err != nil {
		e.logError("Load failed", err)
		return
	}
	e.logger.Debug("Asset loaded",
		zap.String("content_id", req.contentID.String()),
		zap.String("display_name", ent.displayName),
		zap.String("container", req.container),
		zap.String("request_id", req.id.String()),
		zap.Duration("duration", req.Duration()))
}

func (e *Engine) recordLatency(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if len(e.latencies) < latencyWindow {
		e.latencies = append(e.latencies, ms)
		return
	}
	e.latencies[e.latNext] = ms
	e.latNext = (e.latNext + 1) % latencyWindow
}

func (e *Engine) logError(msg string, err error) {
	var ae *errs.Error
	if !errors.As(err, &ae) {
		e.logger.Error(msg, zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.String("kind", string(ae.Kind)),
		zap.String("content_id", ae.ContentID),
		zap.String("display_name", ae.DisplayName),
		zap.String("container", ae.Container),
		zap.Error(err),
	}
	if ae.Kind == errs.KindUsage {
		e.logger.Warn(msg, fields...)
		return
	}
	e.logger.Error(msg, fields...)
}

// State returns the cache state of id.
func (e *Engine) State(id types.ContentID) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok {
		return StateNotRequested
	}
	return ent.state()
}

// CheckIfRequestedLoad reports whether a load of id was ever requested
// since the last unload.
func (e *Engine) CheckIfRequestedLoad(id types.ContentID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.entries[id]
	return ok
}

// CheckIfRequestReady reports whether the request for id has finished, so
// GetAsyncResult will not block.
func (e *Engine) CheckIfRequestReady(id types.ContentID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	return ok && ent.request.IsDone()
}

// Request returns the current request for id.
func (e *Engine) Request(id types.ContentID) (*Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.entries[id]
	if !ok {
		return nil, false
	}
	return ent.request, true
}

// RequestPrewarm queues refs for the next prewarm drain and returns how
// many were newly queued. Without a scheduler nothing is queued.
func (e *Engine) RequestPrewarm(refs ...types.Ref) int {
	e.mu.Lock()
	s := e.scheduler
	e.mu.Unlock()
	if s == nil {
		e.logger.Warn("Prewarm requested without a scheduler", zap.Int("refs", len(refs)))
		return 0
	}
	return s.Request(refs...)
}

// DrainPrewarm loads a prewarm batch. Refs already resolved are skipped
// without touching the host; the rest fan out as one async batch.
func (e *Engine) DrainPrewarm(ctx context.Context, refs []types.Ref) prewarm.Stats {
	var stats prewarm.Stats
	handles := make([]types.Handle[host.Object], 0, len(refs))
	for _, ref := range refs {
		if e.State(ref.ID) == StateResolved {
			stats.Skipped++
			continue
		}
		handles = append(handles, types.Handle[host.Object]{
			ID:          ref.ID,
			LocalID:     ref.LocalID,
			DisplayName: ref.DisplayName,
		})
	}
	if len(handles) == 0 {
		return stats
	}

	objs, _ := LoadAsyncBatched(ctx, e, handles).Wait(ctx)
	for _, obj := range objs {
		if obj != nil {
			stats.Loaded++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// UnloadAll waits for every pending request, then empties the cache. With
// destroyDerived, cached objects that can be destroyed are. Requests issued
// while waiting are waited for too, so nothing is left pending. Containers
// stay open; Release also closes them and Shutdown closes the registry.
func (e *Engine) UnloadAll(ctx context.Context, destroyDerived bool) error {
	for {
		e.mu.Lock()
		var pending []*Request
		for _, ent := range e.entries {
			if !ent.request.IsDone() {
				pending = append(pending, ent.request)
			}
		}
		if len(pending) == 0 {
			entries := e.entries
			e.entries = make(map[types.ContentID]*entry)
			e.metrics.SetCache(0, e.pending)
			e.mu.Unlock()

			destroyed := 0
			if destroyDerived {
				for _, ent := range entries {
					if d, ok := ent.object.(host.Destroyer); ok {
						d.Destroy()
						destroyed++
					}
				}
			}
			e.metrics.IncUnloads()
			e.logger.Info("Asset cache unloaded",
				zap.Int("entries", len(entries)),
				zap.Int("destroyed", destroyed))
			return nil
		}
		e.mu.Unlock()

		e.logger.Debug("Completing pending loads before unload", zap.Int("pending", len(pending)))
		for _, req := range pending {
			select {
			case <-req.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Release unloads the cache like UnloadAll, then closes every container.
// The containers are marked unavailable and reopen on
// Registry.RetryUnavailable. A load issued between the two steps fails
// against the closed container and is retried on its next request. It
// returns how many containers were closed.
func (e *Engine) Release(ctx context.Context, destroyDerived bool) (int, error) {
	if err := e.UnloadAll(ctx, destroyDerived); err != nil {
		return 0, err
	}
	return e.registry.Release(destroyDerived)
}

// Shutdown stops the prewarm scheduler, waits for a drain in flight,
// unloads the cache and closes the registry.
func (e *Engine) Shutdown(ctx context.Context, destroyDerived bool) error {
	e.mu.Lock()
	s := e.scheduler
	e.mu.Unlock()

	if s != nil {
		s.Stop()
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := e.UnloadAll(ctx, destroyDerived); err != nil {
		return err
	}
	return e.registry.Close(destroyDerived)
}

// CacheStats counts entries by state.
type CacheStats struct {
	Entries  int `json:"entries"`
	Pending  int `json:"pending"`
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

// Stats returns cache statistics.
func (e *Engine) Stats() CacheStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := CacheStats{Entries: len(e.entries)}
	for _, ent := range e.entries {
		switch ent.state() {
		case StatePending:
			s.Pending++
		case StateResolved:
			s.Resolved++
		case StateFailed:
			s.Failed++
		}
	}
	return s
}

// sortedEntries returns a copy of the entries sorted by id. Caller holds mu.
func (e *Engine) sortedEntries() []entry {
	out := make([]entry, 0, len(e.entries))
	for _, ent := range e.entries {
		out = append(out, *ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
