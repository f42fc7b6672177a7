// Package hosttest provides host implementations for tests: an in-memory
// Fake with load counting, gating and failure injection, and a testify
// MockHost for call expectations.
package hosttest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Fake is an in-memory host.
type Fake struct {
	mu         sync.Mutex
	objects    map[string]map[types.ContentID]host.Object
	missing    map[string]map[types.ContentID]bool
	openErr    map[string]error
	loadErr    map[types.ContentID]error
	panics     map[types.ContentID]string
	loads      map[types.ContentID]int
	opens      map[string]int
	containers map[string]*FakeContainer
	gate       chan struct{}
}

// NewFake creates an empty fake host.
func NewFake() *Fake {
	return &Fake{
		objects:    make(map[string]map[types.ContentID]host.Object),
		missing:    make(map[string]map[types.ContentID]bool),
		openErr:    make(map[string]error),
		loadErr:    make(map[types.ContentID]error),
		panics:     make(map[types.ContentID]string),
		loads:      make(map[types.ContentID]int),
		opens:      make(map[string]int),
		containers: make(map[string]*FakeContainer),
	}
}

// Add stores obj under id in the named container. A nil obj makes the load
// succeed with nothing.
func (f *Fake) Add(container string, id types.ContentID, obj host.Object) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects[container] == nil {
		f.objects[container] = make(map[types.ContentID]host.Object)
	}
	f.objects[container][id] = obj
	return f
}

// FailOpen makes OpenContainer fail for the named container.
func (f *Fake) FailOpen(container string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr[container] = err
	return f
}

// ClearOpenFailure lets the named container open again.
func (f *Fake) ClearOpenFailure(container string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.openErr, container)
}

// FailLoad makes every load of id fail.
func (f *Fake) FailLoad(id types.ContentID, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr[id] = err
	return f
}

// PanicOnLoad makes every load of id panic with msg, from Load and from the
// LoadAsync call itself.
func (f *Fake) PanicOnLoad(id types.ContentID, msg string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[id] = msg
	return f
}

// Hold blocks subsequent loads until Release.
func (f *Fake) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
	}
}

// Release unblocks every held load.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// Loads returns how many times id was loaded.
func (f *Fake) Loads(id types.ContentID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[id]
}

// TotalLoads returns the number of loads across all ids.
func (f *Fake) TotalLoads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.loads {
		n += c
	}
	return n
}

// Opens returns how many times the named container was opened.
func (f *Fake) Opens(container string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[container]
}

// Container returns the last opened container with that name.
func (f *Fake) Container(name string) *FakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers[name]
}

// OpenContainer opens name. The path is recorded but not read.
func (f *Fake) OpenContainer(ctx context.Context, name, path string) (host.Container, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[name]++
	if err := f.openErr[name]; err != nil {
		return nil, err
	}
	c := &FakeContainer{fake: f, name: name, path: path}
	f.containers[name] = c
	return c, nil
}

// SubObjects enumerates every nested child of obj.
func (f *Fake) SubObjects(obj host.Object) []host.Object {
	return host.Descendants(obj)
}

func (f *Fake) begin(container string, id types.ContentID) (host.Object, chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads[id]++

	if msg, ok := f.panics[id]; ok {
		panic(msg)
	}
	if err := f.loadErr[id]; err != nil {
		return nil, f.gate, err
	}
	objs := f.objects[container]
	obj, ok := objs[id]
	if !ok {
		return nil, f.gate, fmt.Errorf("%w: %s in %s", host.ErrNotFound, id, container)
	}
	return obj, f.gate, nil
}

// FakeContainer is a container opened by Fake.
type FakeContainer struct {
	fake *Fake
	name string
	path string

	mu             sync.Mutex
	closed         bool
	destroyDerived bool
}

func (c *FakeContainer) Name() string { return c.name }
func (c *FakeContainer) Path() string { return c.path }

// Load returns the stored object, waiting on the fake's gate if held.
func (c *FakeContainer) Load(ctx context.Context, record types.AssetRecord) (host.Object, error) {
	obj, gate, err := c.fake.begin(c.name, record.ID)
	return c.finish(ctx, gate, obj, err)
}

// LoadAsync counts the load immediately and completes it on a goroutine.
func (c *FakeContainer) LoadAsync(ctx context.Context, record types.AssetRecord) *host.Operation {
	obj, gate, err := c.fake.begin(c.name, record.ID)
	return host.Go(ctx, func(ctx context.Context) (host.Object, error) {
		return c.finish(ctx, gate, obj, err)
	})
}

func (c *FakeContainer) finish(ctx context.Context, gate chan struct{}, obj host.Object, err error) (host.Object, error) {
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.Closed() {
		return nil, host.ErrClosed
	}
	return obj, err
}

// Close marks the container closed.
func (c *FakeContainer) Close(destroyDerived bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.destroyDerived = destroyDerived
	return nil
}

// Closed reports whether Close was called.
func (c *FakeContainer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ClosedWithDestroy reports the destroyDerived flag of the Close call.
func (c *FakeContainer) ClosedWithDestroy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyDerived
}

// MockHost is a testify mock of host.Host.
type MockHost struct {
	mock.Mock
}

// NewMockHost creates a mock host that asserts its expectations at cleanup.
func NewMockHost(t *testing.T) *MockHost {
	t.Helper()
	m := new(MockHost)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// OpenContainer mocks the OpenContainer method.
func (m *MockHost) OpenContainer(ctx context.Context, name, path string) (host.Container, error) {
	args := m.Called(ctx, name, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(host.Container), args.Error(1)
}

// SubObjects is not mocked; it enumerates with host.Descendants.
func (m *MockHost) SubObjects(obj host.Object) []host.Object {
	return host.Descendants(obj)
}
