// Package prewarm schedules speculative loads. Handles requested ahead of
// need are queued without duplicates and drained as one batch per quantum.
package prewarm

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Stats is the outcome of one drain.
type Stats struct {
	Loaded  int `json:"loaded"`  // Issued or joined, and finished successfully
	Skipped int `json:"skipped"` // Already resolved before the drain
	Failed  int `json:"failed"`
}

// Drainer loads a batch of references.
type Drainer interface {
	DrainPrewarm(ctx context.Context, refs []types.Ref) Stats
}

// Scheduler drains the prewarm queue once per quantum.
type Scheduler struct {
	drainer Drainer
	quantum time.Duration
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	queue   []types.Ref
	queued  map[types.Key]bool
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a scheduler. Call Start to begin ticking.
func New(drainer Drainer, quantum time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if quantum <= 0 {
		quantum = 100 * time.Millisecond
	}
	return &Scheduler{
		drainer: drainer,
		quantum: quantum,
		logger:  logger,
		metrics: metrics,
		queued:  make(map[types.Key]bool),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Request queues refs that are not already queued and returns how many
// were added. Refs with an empty id are ignored.
func (s *Scheduler) Request(refs ...types.Ref) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, ref := range refs {
		if ref.ID.IsZero() || s.queued[ref.Key()] {
			continue
		}
		s.queued[ref.Key()] = true
		s.queue = append(s.queue, ref)
		added++
	}
	s.metrics.SetPrewarmQueue(len(s.queue))
	return added
}

// Pending returns the number of queued refs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Tick drains the current queue. Refs queued while the drain runs wait for
// the next tick. The drain runs on a context detached from ctx's
// cancellation so it is never cut short.
func (s *Scheduler) Tick(ctx context.Context) Stats {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.queued = make(map[types.Key]bool)
	s.mu.Unlock()

	if len(batch) == 0 {
		return Stats{}
	}
	s.metrics.SetPrewarmQueue(s.Pending())

	start := time.Now()
	stats := s.drainer.DrainPrewarm(context.WithoutCancel(ctx), batch)
	s.metrics.RecordPrewarmBatch(stats.Loaded, stats.Skipped, stats.Failed)

	s.logger.Debug("Prewarm drained",
		zap.Int("batch", len(batch)),
		zap.Int("loaded", stats.Loaded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", time.Since(start)))
	return stats
}

// Start launches the ticking goroutine. It runs until Stop or until ctx is
// done. Calling Start more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.quantum)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Stop may race with the tick; it wins
			select {
			case <-s.stop:
				return
			default:
			}
			s.Tick(ctx)
		}
	}
}

// Stop prevents future drains. A drain already running finishes; Done
// closes once it has.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stop)
	if !s.started {
		close(s.done)
	}
}

// Done is closed when the ticking goroutine has exited after Stop, or
// immediately on Stop if Start was never called.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}
