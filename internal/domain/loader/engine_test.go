package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/catalog"
	"github.com/GriffinCanCode/assetcatalog/internal/domain/prewarm"
	"github.com/GriffinCanCode/assetcatalog/internal/domain/registry"
	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/host/hosttest"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/resilience"
	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

type fixture struct {
	fake    *hosttest.Fake
	engine  *Engine
	metrics *monitoring.Metrics
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, fake *hosttest.Fake, opts Options, descriptors ...*catalog.Descriptor) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	reg := registry.New(catalog.New(descriptors...), fake, registry.Options{Root: "deploy", Platform: "linux", Logger: logger})
	require.NoError(t, reg.Initialize(context.Background()))

	m := monitoring.NewMetrics(prometheus.NewRegistry())
	opts.Logger = logger
	opts.Metrics = m
	return &fixture{fake: fake, engine: New(reg, opts), metrics: m, logs: logs}
}

func rec(id string) types.AssetRecord {
	return types.AssetRecord{ID: types.ContentID(id), Path: id}
}

func ui(ids ...string) *catalog.Descriptor {
	d := catalog.NewDescriptor("ui", types.PackShared)
	for _, id := range ids {
		d.Add(rec(id))
	}
	return d
}

func atlas() *host.Document {
	return host.NewDocument("atlas", "atlas", nil,
		[]host.Object{
			host.NewBlob("icons/moon", "image/png", nil),
			host.NewBlob("icons/star", "image/png", nil),
		},
		[]host.Object{
			host.NewFacet("collider", "box", nil),
			host.NewFacet("sprite", "renderer", nil),
		})
}

func handle[T any](id string) types.Handle[T] {
	return types.Handle[T]{ID: types.ContentID(id), DisplayName: "display-" + id}
}

func TestNeverRequested(t *testing.T) {
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", atlas()), Options{}, ui("a1"))

	assert.False(t, f.engine.CheckIfRequestedLoad("a1"))
	assert.False(t, f.engine.CheckIfRequestReady("a1"))
	assert.Equal(t, StateNotRequested, f.engine.State("a1"))
}

func TestLoadSyncReturnsCachedReference(t *testing.T) {
	doc := atlas()
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", doc), Options{}, ui("a1"))
	ctx := context.Background()

	first, err := LoadSync(ctx, f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)
	assert.Same(t, doc, first)

	second, err := LoadSync(ctx, f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)
	assert.Same(t, first, second)

	star, err := LoadSync(ctx, f.engine, types.Handle[*host.Blob]{ID: "a1", SubResource: "icons/star"})
	require.NoError(t, err)
	assert.Equal(t, "icons/star", star.Name())

	assert.Equal(t, 1, f.fake.Loads("a1"), "the container is only touched once")
	assert.Equal(t, StateResolved, f.engine.State("a1"))
	assert.True(t, f.engine.CheckIfRequestedLoad("a1"))
	assert.True(t, f.engine.CheckIfRequestReady("a1"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Loads.WithLabelValues(monitoring.ModeSync, monitoring.OutcomeSuccess)))
}

func TestConcurrentLoadAsyncSharesOneRequest(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "a1", atlas())
	f := newFixture(t, fake, Options{}, ui("a1"))
	fake.Hold()

	const callers = 32
	reqs := make([]*Request, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := LoadAsync(context.Background(), f.engine, handle[*host.Document]("a1"))
			assert.NoError(t, err)
			reqs[i] = req
		}(i)
	}
	wg.Wait()

	for _, req := range reqs {
		assert.Same(t, reqs[0], req)
	}
	assert.Equal(t, StatePending, f.engine.State("a1"))
	assert.False(t, f.engine.CheckIfRequestReady("a1"))
	assert.Equal(t, 1, fake.Loads("a1"))

	fake.Release()
	require.NoError(t, reqs[0].Wait(context.Background()))
	assert.Equal(t, 1, fake.Loads("a1"))
	assert.Equal(t, float64(callers-1), testutil.ToFloat64(f.metrics.DedupJoins))
}

func TestLoadSyncJoinsPendingRequest(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "a1", atlas())
	f := newFixture(t, fake, Options{}, ui("a1"))
	ctx := context.Background()
	fake.Hold()

	req, err := LoadAsync(ctx, f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)

	got := make(chan *host.Document, 1)
	go func() {
		doc, err := LoadSync(ctx, f.engine, handle[*host.Document]("a1"))
		assert.NoError(t, err)
		got <- doc
	}()

	select {
	case <-got:
		t.Fatal("LoadSync returned before the pending load finished")
	case <-time.After(20 * time.Millisecond):
	}

	fake.Release()
	syncDoc := <-got
	require.NoError(t, req.Wait(ctx))

	asyncDoc, err := GetAsyncResult(ctx, f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)
	assert.Same(t, asyncDoc, syncDoc)
	assert.Equal(t, 1, fake.Loads("a1"))
}

func TestWaitOnFinishedRequestDoesNotBlock(t *testing.T) {
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", atlas()), Options{}, ui("a1"))

	_, err := LoadSync(context.Background(), f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)

	req, err := LoadAsync(context.Background(), f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)
	assert.True(t, req.IsDone())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, req.Wait(ctx))
}

func TestSubResourceResolution(t *testing.T) {
	doc := atlas()
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", doc), Options{}, ui("a1"))
	ctx := context.Background()

	tests := []struct {
		name   string
		handle types.Handle[host.Object]
		want   string
	}{
		{"exact sub-object", types.Handle[host.Object]{ID: "a1", SubResource: "icons/moon"}, "icons/moon"},
		{"unmatched name falls back", types.Handle[host.Object]{ID: "a1", SubResource: "icons/comet"}, "atlas"},
		{"no sub-resource", types.Handle[host.Object]{ID: "a1"}, "atlas"},
		{"named facet", types.Handle[host.Object]{ID: "a1", SubResource: "sprite", Capability: types.CapabilityFacet}, "sprite"},
		{"first facet", types.Handle[host.Object]{ID: "a1", Capability: types.CapabilityFacet}, "collider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := LoadSync(ctx, f.engine, tt.handle)
			require.NoError(t, err)
			assert.Equal(t, tt.want, obj.Name())
		})
	}

	facet, err := LoadSync(ctx, f.engine, types.Handle[*host.Facet]{ID: "a1", Capability: types.CapabilityFacet})
	require.NoError(t, err)
	assert.Equal(t, "box", facet.Kind())

	assert.Equal(t, 1, f.fake.Loads("a1"), "sub-resources are never loaded separately")
}

func TestUnmatchedSubResourceReturnsSameTopLevel(t *testing.T) {
	doc := atlas()
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", doc), Options{}, ui("a1"))

	obj, err := LoadSync(context.Background(), f.engine, types.Handle[*host.Document]{ID: "a1", SubResource: "missing"})
	require.NoError(t, err)
	assert.Same(t, doc, obj)
}

func TestTypeMismatch(t *testing.T) {
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", atlas()), Options{}, ui("a1"))

	_, err := LoadSync(context.Background(), f.engine, handle[*host.Blob]("a1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrLoad)
	assert.Contains(t, err.Error(), "*host.Blob")

	// The object itself loaded fine and stays cached
	assert.Equal(t, StateResolved, f.engine.State("a1"))
	assert.Equal(t, 1, f.logs.FilterMessage("Resolved object has the wrong type").Len())
}

func TestResolutionErrorsDoNotCreateEntries(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "a1", atlas()).FailOpen("fx", errors.New("missing"))
	fx := catalog.NewDescriptor("fx", types.PackShared, rec("f1"))
	f := newFixture(t, fake, Options{}, ui("a1"), fx)
	ctx := context.Background()

	_, err := LoadSync(ctx, f.engine, types.Handle[host.Object]{DisplayName: "nameless"})
	assert.ErrorIs(t, err, errs.ErrResolution)

	_, err = LoadSync(ctx, f.engine, handle[host.Object]("nope"))
	assert.ErrorIs(t, err, errs.ErrResolution)
	assert.False(t, f.engine.CheckIfRequestedLoad("nope"))

	_, err = LoadAsync(ctx, f.engine, handle[host.Object]("f1"))
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "fx", e.Container)
	assert.Equal(t, "display-f1", e.DisplayName)
	assert.False(t, f.engine.CheckIfRequestedLoad("f1"))

	entries := f.logs.FilterField(zap.String("content_id", "f1")).All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "fx", entries[0].ContextMap()["container"])
}

func TestHostReturningNothingFailsThenRetries(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "n1", nil)
	f := newFixture(t, fake, Options{}, ui("n1"))
	ctx := context.Background()

	_, err := LoadSync(ctx, f.engine, handle[host.Object]("n1"))
	assert.ErrorIs(t, err, errs.ErrLoad)
	assert.Equal(t, StateFailed, f.engine.State("n1"))
	assert.True(t, f.engine.CheckIfRequestReady("n1"))

	// A finished failure is reported by GetAsyncResult without reloading
	_, err = GetAsyncResult(ctx, f.engine, handle[host.Object]("n1"))
	assert.ErrorIs(t, err, errs.ErrLoad)
	assert.Equal(t, 1, fake.Loads("n1"))

	fake.Add("ui", "n1", host.NewBlob("n1", "", nil))
	obj, err := LoadSync(ctx, f.engine, handle[host.Object]("n1"))
	require.NoError(t, err)
	assert.Equal(t, "n1", obj.Name())
	assert.Equal(t, 2, fake.Loads("n1"))
}

func TestGetAsyncResultNeverRequestedFallsBack(t *testing.T) {
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", atlas()), Options{}, ui("a1"))

	doc, err := GetAsyncResult(context.Background(), f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)
	assert.Equal(t, "atlas", doc.Name())

	warnings := f.logs.FilterMessage("Early async result").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zap.WarnLevel, warnings[0].Level)
	assert.Equal(t, "usage", warnings[0].ContextMap()["kind"])
}

func TestGetAsyncResultWhilePendingWaits(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "a1", atlas())
	f := newFixture(t, fake, Options{}, ui("a1"))
	ctx := context.Background()
	fake.Hold()

	_, err := LoadAsync(ctx, f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)

	got := make(chan *host.Document, 1)
	go func() {
		doc, err := GetAsyncResult(ctx, f.engine, handle[*host.Document]("a1"))
		assert.NoError(t, err)
		got <- doc
	}()

	require.Eventually(t, func() bool {
		return f.logs.FilterMessage("Early async result").Len() == 1
	}, time.Second, time.Millisecond)

	fake.Release()
	assert.Equal(t, "atlas", (<-got).Name())
	assert.Equal(t, 1, fake.Loads("a1"))
}

func TestGetAsyncResultAfterCompletion(t *testing.T) {
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", atlas()), Options{}, ui("a1"))
	ctx := context.Background()

	req, err := LoadAsync(ctx, f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)
	require.NoError(t, req.Wait(ctx))
	assert.True(t, f.engine.CheckIfRequestReady("a1"))

	doc, err := GetAsyncResult(ctx, f.engine, types.Handle[*host.Blob]{ID: "a1", SubResource: "icons/star"})
	require.NoError(t, err)
	assert.Equal(t, "icons/star", doc.Name())
	assert.Equal(t, 0, f.logs.FilterMessage("Early async result").Len())
}

func TestBatchesResolveInCallerOrder(t *testing.T) {
	fake := hosttest.NewFake()
	for _, id := range []string{"a", "b", "c"} {
		fake.Add("ui", types.ContentID(id), host.NewBlob(id, "", nil))
	}
	f := newFixture(t, fake, Options{}, ui("a", "b", "c"))
	ctx := context.Background()

	// Pre-resolve one slot; it must not be reloaded
	_, err := LoadSync(ctx, f.engine, handle[*host.Blob]("b"))
	require.NoError(t, err)

	handles := []types.Handle[*host.Blob]{handle[*host.Blob]("c"), handle[*host.Blob]("b"), handle[*host.Blob]("a")}
	blobs, err := LoadSyncBatched(ctx, f.engine, handles)
	require.NoError(t, err)
	require.Len(t, blobs, 3)
	assert.Equal(t, "c", blobs[0].Name())
	assert.Equal(t, "b", blobs[1].Name())
	assert.Equal(t, "a", blobs[2].Name())
	assert.Equal(t, 1, fake.Loads("b"))
	assert.Equal(t, 3, fake.TotalLoads())
}

func TestBatchJoinsSlotErrors(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "a", host.NewBlob("a", "", nil))
	f := newFixture(t, fake, Options{}, ui("a"))
	ctx := context.Background()

	batch := LoadAsyncBatched(ctx, f.engine, []types.Handle[*host.Blob]{
		handle[*host.Blob]("missing"),
		handle[*host.Blob]("a"),
		{},
	})
	assert.Equal(t, 3, batch.Len())
	assert.NotEmpty(t, batch.ID())

	blobs, err := batch.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrResolution)
	assert.True(t, batch.IsDone())
	assert.Nil(t, blobs[0])
	assert.Equal(t, "a", blobs[1].Name())
	assert.Nil(t, blobs[2])
}

func TestBatchWaitsForSlowFirstSlot(t *testing.T) {
	fake := hosttest.NewFake().
		Add("ui", "slow", host.NewBlob("slow", "", nil)).
		Add("ui", "fast", host.NewBlob("fast", "", nil))
	f := newFixture(t, fake, Options{}, ui("slow", "fast"))
	ctx := context.Background()

	// fast resolves before the batch; slow is held
	_, err := LoadSync(ctx, f.engine, handle[*host.Blob]("fast"))
	require.NoError(t, err)
	fake.Hold()

	done := make(chan []*host.Blob, 1)
	go func() {
		blobs, err := LoadSyncBatched(ctx, f.engine, []types.Handle[*host.Blob]{handle[*host.Blob]("slow"), handle[*host.Blob]("fast")})
		assert.NoError(t, err)
		done <- blobs
	}()

	select {
	case <-done:
		t.Fatal("batch observed before its first slot finished")
	case <-time.After(20 * time.Millisecond):
	}

	fake.Release()
	blobs := <-done
	assert.Equal(t, "slow", blobs[0].Name())
	assert.Equal(t, "fast", blobs[1].Name())
}

func TestHostPanicFailsLoad(t *testing.T) {
	fake := hosttest.NewFake().
		Add("ui", "a1", atlas()).
		Add("ui", "b1", host.NewBlob("b1", "", nil)).
		PanicOnLoad("a1", "corrupt index")
	f := newFixture(t, fake, Options{}, ui("a1", "b1"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := LoadSync(ctx, f.engine, handle[host.Object]("a1"))
	require.ErrorIs(t, err, host.ErrPanic)
	assert.True(t, errors.Is(err, errs.ErrLoad))
	assert.Contains(t, err.Error(), "corrupt index")
	assert.Equal(t, StateFailed, f.engine.State("a1"))

	// The async path retries the failed entry and fails the same way
	req, err := LoadAsync(ctx, f.engine, handle[host.Object]("a1"))
	require.NoError(t, err)
	assert.ErrorIs(t, req.Wait(ctx), host.ErrPanic)
	assert.Equal(t, 2, fake.Loads("a1"))

	_, err = GetAsyncResult(ctx, f.engine, handle[host.Object]("a1"))
	assert.ErrorIs(t, err, host.ErrPanic)

	blob, err := LoadSync(ctx, f.engine, handle[*host.Blob]("b1"))
	require.NoError(t, err)
	assert.Equal(t, "b1", blob.Name())

	assert.Equal(t, 0, f.engine.Stats().Pending)
	require.NoError(t, f.engine.UnloadAll(ctx, false))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PendingRequests))
}

func TestUnloadAllCompletesPendingFirst(t *testing.T) {
	fake := hosttest.NewFake().
		Add("ui", "a", host.NewBlob("a", "", nil)).
		Add("ui", "b", host.NewBlob("b", "", nil))
	f := newFixture(t, fake, Options{}, ui("a", "b"))
	ctx := context.Background()
	fake.Hold()

	reqA, err := LoadAsync(ctx, f.engine, handle[host.Object]("a"))
	require.NoError(t, err)
	_, err = LoadAsync(ctx, f.engine, handle[host.Object]("b"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.engine.Stats().Pending)

	unloaded := make(chan error, 1)
	go func() { unloaded <- f.engine.UnloadAll(ctx, false) }()

	select {
	case <-unloaded:
		t.Fatal("UnloadAll returned while loads were pending")
	case <-time.After(20 * time.Millisecond):
	}

	fake.Release()
	require.NoError(t, <-unloaded)

	assert.True(t, reqA.IsDone())
	assert.NoError(t, reqA.Err())
	assert.Equal(t, CacheStats{}, f.engine.Stats())
	assert.False(t, f.engine.CheckIfRequestedLoad("a"))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PendingRequests))
}

func TestUnloadAllContextCancelled(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "a", host.NewBlob("a", "", nil))
	f := newFixture(t, fake, Options{}, ui("a"))
	fake.Hold()
	defer fake.Release()

	_, err := LoadAsync(context.Background(), f.engine, handle[host.Object]("a"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.engine.UnloadAll(ctx, false), context.DeadlineExceeded)
	assert.True(t, f.engine.CheckIfRequestedLoad("a"), "cache is kept when unload gives up")
}

func TestReleaseClosesContainersAfterPending(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "a", host.NewBlob("a", "", nil))
	f := newFixture(t, fake, Options{}, ui("a"))
	ctx := context.Background()
	fake.Hold()

	req, err := LoadAsync(ctx, f.engine, handle[host.Object]("a"))
	require.NoError(t, err)

	released := make(chan int, 1)
	go func() {
		n, err := f.engine.Release(ctx, false)
		assert.NoError(t, err)
		released <- n
	}()
	select {
	case <-released:
		t.Fatal("Release returned while a load was pending")
	case <-time.After(20 * time.Millisecond):
	}
	assert.False(t, fake.Container("ui").Closed())

	fake.Release()
	assert.Equal(t, 1, <-released)
	assert.NoError(t, req.Err())
	assert.True(t, fake.Container("ui").Closed())

	_, err = LoadSync(ctx, f.engine, handle[host.Object]("a"))
	assert.ErrorIs(t, err, errs.ErrResolution)

	require.Equal(t, 1, f.engine.Registry().RetryUnavailable(ctx))
	_, err = LoadSync(ctx, f.engine, handle[host.Object]("a"))
	assert.NoError(t, err)
}

func TestUnloadAllDestroysDerived(t *testing.T) {
	doc := atlas()
	f := newFixture(t, hosttest.NewFake().Add("ui", "a1", doc), Options{}, ui("a1"))
	ctx := context.Background()

	first, err := LoadSync(ctx, f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)
	require.NoError(t, f.engine.UnloadAll(ctx, true))
	assert.True(t, doc.Destroyed())

	// Reloading after unload goes back to the host
	second, err := LoadSync(ctx, f.engine, handle[*host.Document]("a1"))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 2, f.fake.Loads("a1"))
}

func TestPrewarmSkipsAlreadyResolved(t *testing.T) {
	fake := hosttest.NewFake()
	ids := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, id := range ids {
		fake.Add("ui", types.ContentID(id), host.NewBlob(id, "", nil))
	}
	f := newFixture(t, fake, Options{}, ui(ids...))
	ctx := context.Background()

	s := prewarm.New(f.engine, time.Hour, nil, nil)
	f.engine.AttachScheduler(s)

	refs := make([]types.Ref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, types.Ref{ID: types.ContentID(id)})
	}
	assert.Equal(t, 5, f.engine.RequestPrewarm(refs...))
	assert.Equal(t, 0, f.engine.RequestPrewarm(refs[0]))

	for _, id := range ids[:3] {
		_, err := LoadSync(ctx, f.engine, handle[host.Object](id))
		require.NoError(t, err)
	}

	stats := s.Tick(ctx)
	assert.Equal(t, prewarm.Stats{Loaded: 2, Skipped: 3}, stats)
	for _, id := range ids {
		assert.Equal(t, 1, fake.Loads(types.ContentID(id)), id)
		assert.Equal(t, StateResolved, f.engine.State(types.ContentID(id)))
	}
}

func TestRequestPrewarmWithoutScheduler(t *testing.T) {
	f := newFixture(t, hosttest.NewFake(), Options{}, ui())
	assert.Equal(t, 0, f.engine.RequestPrewarm(types.Ref{ID: "a"}))
}

func TestShutdown(t *testing.T) {
	doc := atlas()
	fake := hosttest.NewFake().Add("ui", "a1", doc)
	f := newFixture(t, fake, Options{}, ui("a1"))
	ctx := context.Background()

	s := prewarm.New(f.engine, time.Millisecond, nil, nil)
	f.engine.AttachScheduler(s)
	s.Start(ctx)

	_, err := LoadSync(ctx, f.engine, handle[host.Object]("a1"))
	require.NoError(t, err)

	require.NoError(t, f.engine.Shutdown(ctx, true))
	<-s.Done()

	assert.True(t, fake.Container("ui").ClosedWithDestroy())
	assert.True(t, doc.Destroyed())
	assert.False(t, f.engine.CheckIfRequestedLoad("a1"))

	_, err = LoadSync(ctx, f.engine, handle[host.Object]("a1"))
	assert.ErrorIs(t, err, errs.ErrResolution)
}

func TestBreakerFailsFastPerContainer(t *testing.T) {
	fake := hosttest.NewFake().
		Add("ui", "ok", host.NewBlob("ok", "", nil)).
		FailLoad("bad", errors.New("read error"))
	opts := Options{Breaker: resilience.Settings{
		Timeout: time.Hour,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	}}
	f := newFixture(t, fake, opts, ui("ok", "bad"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := LoadSync(ctx, f.engine, handle[host.Object]("bad"))
		assert.ErrorIs(t, err, errs.ErrLoad)
	}
	assert.Equal(t, 2, fake.Loads("bad"))

	_, err := LoadSync(ctx, f.engine, handle[host.Object]("ok"))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 0, fake.Loads("ok"))
	assert.Equal(t, "open", f.engine.Snapshot().Breakers["ui"])
}

func TestMissingAssetDoesNotTripBreaker(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "ok", host.NewBlob("ok", "", nil))
	opts := Options{Breaker: resilience.Settings{
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 1 },
	}}
	// "gone" is listed by the catalog but missing from the package
	f := newFixture(t, fake, opts, ui("ok", "gone"))
	ctx := context.Background()

	_, err := LoadSync(ctx, f.engine, handle[host.Object]("gone"))
	assert.ErrorIs(t, err, host.ErrNotFound)

	_, err = LoadSync(ctx, f.engine, handle[host.Object]("ok"))
	assert.NoError(t, err)
}

func TestDiagnostics(t *testing.T) {
	fake := hosttest.NewFake().Add("ui", "a1", atlas())
	f := newFixture(t, fake, Options{}, ui("a1", "n1"))
	ctx := context.Background()

	_, err := LoadSync(ctx, f.engine, handle[host.Object]("a1"))
	require.NoError(t, err)
	_, _ = LoadSync(ctx, f.engine, handle[host.Object]("n1"))

	snap := f.engine.Snapshot()
	assert.Equal(t, CacheStats{Entries: 2, Resolved: 1, Failed: 1}, snap.Cache)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, types.ContentID("a1"), snap.Entries[0].ID)
	assert.Equal(t, "resolved", snap.Entries[0].State)
	assert.NotEmpty(t, snap.Entries[1].Error)
	assert.Equal(t, 2, snap.Latency.Samples)

	text := f.engine.Diagnostics()
	assert.Contains(t, text, "a1 (display-a1)")
	assert.Contains(t, text, "resolved")
	assert.Contains(t, text, "failed")
	assert.Contains(t, text, "registry: 1 descriptors")
	assert.Contains(t, text, "latency: n=2")
}

func TestAtMostOneLoadInFlightProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pool := rapid.IntRange(1, 6).Draw(rt, "pool")
		fake := hosttest.NewFake()
		ids := make([]string, pool)
		for i := range ids {
			ids[i] = fmt.Sprintf("id%d", i)
			fake.Add("ui", types.ContentID(ids[i]), host.NewBlob(ids[i], "", nil))
		}

		reg := registry.New(catalog.New(ui(ids...)), fake, registry.Options{})
		if err := reg.Initialize(context.Background()); err != nil {
			rt.Fatalf("initialize: %v", err)
		}
		e := New(reg, Options{})

		calls := rapid.SliceOfN(rapid.IntRange(0, pool-1), 1, 40).Draw(rt, "calls")
		syncCall := rapid.SliceOfN(rapid.Bool(), len(calls), len(calls)).Draw(rt, "sync")

		fake.Hold()
		var wg sync.WaitGroup
		for i, idx := range calls {
			wg.Add(1)
			go func(id string, blocking bool) {
				defer wg.Done()
				h := handle[*host.Blob](id)
				if blocking {
					_, _ = LoadSync(context.Background(), e, h)
					return
				}
				if req, err := LoadAsync(context.Background(), e, h); err == nil {
					_ = req.Wait(context.Background())
				}
			}(ids[idx], syncCall[i])
		}
		// Let every caller reach the engine before releasing the host
		time.Sleep(time.Millisecond)
		fake.Release()
		wg.Wait()

		requested := make(map[int]bool)
		for _, idx := range calls {
			requested[idx] = true
		}
		for i, id := range ids {
			want := 0
			if requested[i] {
				want = 1
			}
			if got := fake.Loads(types.ContentID(id)); got != want {
				rt.Fatalf("%s loaded %d times, want %d", id, got, want)
			}
		}
		if p := e.Stats().Pending; p != 0 {
			rt.Fatalf("%d entries still pending", p)
		}
	})
}
