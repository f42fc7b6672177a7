package loader

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/catalog"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// EntrySnapshot describes one cache entry.
type EntrySnapshot struct {
	ID          types.ContentID `json:"id"`
	DisplayName string          `json:"display_name,omitempty"`
	Container   string          `json:"container"`
	State       string          `json:"state"`
	RequestID   string          `json:"request_id"`
	RequestedAt time.Time       `json:"requested_at"`
	Duration    time.Duration   `json:"duration_ns,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// LatencySummary summarizes recent load latencies in milliseconds.
type LatencySummary struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean_ms"`
	StdDev  float64 `json:"stddev_ms"`
	P50     float64 `json:"p50_ms"`
	P95     float64 `json:"p95_ms"`
	Max     float64 `json:"max_ms"`
}

// Snapshot is the engine's diagnostic state.
type Snapshot struct {
	Cache      CacheStats          `json:"cache"`
	Entries    []EntrySnapshot     `json:"entries"`
	Registry   types.RegistryStats `json:"registry"`
	Duplicates []catalog.Duplicate `json:"duplicates,omitempty"`
	Breakers   map[string]string   `json:"breakers"`
	Latency    LatencySummary      `json:"latency"`
	Prewarm    int                 `json:"prewarm_queued"`
}

// Snapshot captures the current diagnostic state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	entries := e.sortedEntries()
	samples := append([]float64(nil), e.latencies...)
	s := e.scheduler
	e.mu.Unlock()

	snap := Snapshot{
		Entries:    make([]EntrySnapshot, 0, len(entries)),
		Registry:   e.registry.Stats(),
		Duplicates: e.registry.Duplicates(),
		Breakers:   make(map[string]string),
		Latency:    summarize(samples),
	}
	for _, ent := range entries {
		state := ent.state()
		switch state {
		case StatePending:
			snap.Cache.Pending++
		case StateResolved:
			snap.Cache.Resolved++
		case StateFailed:
			snap.Cache.Failed++
		}
		es := EntrySnapshot{
			ID:          ent.id,
			DisplayName: ent.displayName,
			Container:   ent.container,
			State:       state.String(),
			RequestID:   ent.request.ID().String(),
			RequestedAt: ent.requestedAt,
			Duration:    ent.request.Duration(),
		}
		if err := ent.request.Err(); err != nil {
			es.Error = err.Error()
		}
		snap.Entries = append(snap.Entries, es)
	}
	snap.Cache.Entries = len(entries)

	for name, st := range e.breakers.States() {
		snap.Breakers[name] = st.String()
	}
	if s != nil {
		snap.Prewarm = s.Pending()
	}
	return snap
}

func summarize(samples []float64) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(samples)
	return LatencySummary{
		Samples: len(samples),
		Mean:    stat.Mean(samples, nil),
		StdDev:  stat.StdDev(samples, nil),
		P50:     stat.Quantile(0.5, stat.Empirical, samples, nil),
		P95:     stat.Quantile(0.95, stat.Empirical, samples, nil),
		Max:     samples[len(samples)-1],
	}
}

// Diagnostics renders the snapshot for humans. The format is not stable.
func (e *Engine) Diagnostics() string {
	snap := e.Snapshot()
	var b strings.Builder

	fmt.Fprintf(&b, "cache: %d entries (%d pending, %d resolved, %d failed), prewarm queued: %d\n",
		snap.Cache.Entries, snap.Cache.Pending, snap.Cache.Resolved, snap.Cache.Failed, snap.Prewarm)
	for _, ent := range snap.Entries {
		label := string(ent.ID)
		if ent.DisplayName != "" {
			label += " (" + ent.DisplayName + ")"
		}
		fmt.Fprintf(&b, "  %-40s %-9s %-20s %s", label, ent.State, ent.Container, ent.Duration)
		if ent.Error != "" {
			fmt.Fprintf(&b, "  error: %s", ent.Error)
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "registry: %d descriptors, %d records, %d open, %d unavailable\n",
		snap.Registry.Descriptors, snap.Registry.Records, snap.Registry.Open, snap.Registry.Unavailable)
	for _, c := range snap.Registry.Containers {
		status := "open"
		if !c.Open {
			status = "unavailable: " + c.Error
		}
		breaker := snap.Breakers[c.Name]
		if breaker == "" {
			breaker = "closed"
		}
		fmt.Fprintf(&b, "  %-30s %-20s breaker=%s %s\n", c.Name, c.Path, breaker, status)
	}
	for _, d := range snap.Duplicates {
		fmt.Fprintf(&b, "  duplicate %s in %s (owner %s)\n", d.ID, strings.Join(d.Descriptors, ", "), d.Descriptors[0])
	}

	l := snap.Latency
	fmt.Fprintf(&b, "latency: n=%d mean=%.2fms sd=%.2fms p50=%.2fms p95=%.2fms max=%.2fms\n",
		l.Samples, l.Mean, l.StdDev, l.P50, l.P95, l.Max)
	return b.String()
}
