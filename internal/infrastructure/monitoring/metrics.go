package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load modes and outcomes used as label values.
const (
	ModeSync  = "sync"
	ModeAsync = "async"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Loader metrics
	Loads           *prometheus.CounterVec
	LoadDuration    *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	DedupJoins      prometheus.Counter
	PendingRequests prometheus.Gauge
	CachedEntries   prometheus.Gauge
	Unloads         prometheus.Counter

	// Registry metrics
	ContainerOpens        *prometheus.CounterVec
	ContainersOpen        prometheus.Gauge
	ContainersUnavailable prometheus.Gauge
	CatalogRecords        prometheus.Gauge

	// Prewarm metrics
	PrewarmBatches prometheus.Counter
	PrewarmItems   *prometheus.CounterVec
	PrewarmQueue   prometheus.Gauge

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	Loads         int64   `json:"loads"`
	LoadFailures  int64   `json:"load_failures"`
	CacheHits     int64   `json:"cache_hits"`
	DedupJoins    int64   `json:"dedup_joins"`
}

// NewMetrics creates a metrics collector registered with reg. A nil reg uses
// the default Prometheus registerer; tests pass prometheus.NewRegistry() so
// collectors never collide across instances.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetd_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetd_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Loader metrics
		Loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetd_loads_total",
				Help: "Total number of host loads by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		LoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetd_load_duration_seconds",
				Help:    "Host load duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"container"},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "assetd_cache_hits_total",
				Help: "Loads answered from an already resolved cache entry",
			},
		),
		DedupJoins: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "assetd_dedup_joins_total",
				Help: "Loads that joined a request already in flight",
			},
		),
		PendingRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetd_pending_requests",
				Help: "Number of host loads in flight",
			},
		),
		CachedEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetd_cache_entries",
				Help: "Number of cache entries",
			},
		),
		Unloads: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "assetd_unloads_total",
				Help: "Total number of UnloadAll calls",
			},
		),

		// Registry metrics
		ContainerOpens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetd_container_opens_total",
				Help: "Container open attempts by result",
			},
			[]string{"result"},
		),
		ContainersOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetd_containers_open",
				Help: "Number of opened containers",
			},
		),
		ContainersUnavailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetd_containers_unavailable",
				Help: "Number of containers that failed to open",
			},
		),
		CatalogRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetd_catalog_records",
				Help: "Number of asset records across all descriptors",
			},
		),

		// Prewarm metrics
		PrewarmBatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "assetd_prewarm_batches_total",
				Help: "Total number of prewarm drains",
			},
		),
		PrewarmItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetd_prewarm_items_total",
				Help: "Prewarm items by result",
			},
			[]string{"result"},
		),
		PrewarmQueue: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "assetd_prewarm_queue",
				Help: "Number of handles waiting for the next prewarm drain",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "assetd_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordLoad records a finished host load
func (m *Metrics) RecordLoad(mode, container, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(mode, outcome).Inc()
	m.LoadDuration.WithLabelValues(container).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Loads++
	if outcome == OutcomeFailure {
		m.snapshot.LoadFailures++
	}
	m.mu.Unlock()
}

// IncCacheHits increments the cache hit counter
func (m *Metrics) IncCacheHits() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
	m.mu.Lock()
	m.snapshot.CacheHits++
	m.mu.Unlock()
}

// IncDedupJoins increments the in-flight join counter
func (m *Metrics) IncDedupJoins() {
	if m == nil {
		return
	}
	m.DedupJoins.Inc()
	m.mu.Lock()
	m.snapshot.DedupJoins++
	m.mu.Unlock()
}

// SetCache sets the cache gauges
func (m *Metrics) SetCache(entries, pending int) {
	if m == nil {
		return
	}
	m.CachedEntries.Set(float64(entries))
	m.PendingRequests.Set(float64(pending))
}

// IncUnloads increments the unload counter
func (m *Metrics) IncUnloads() {
	if m == nil {
		return
	}
	m.Unloads.Inc()
}

// RecordContainerOpen records the result of a container open attempt
func (m *Metrics) RecordContainerOpen(ok bool) {
	if m == nil {
		return
	}
	result := OutcomeSuccess
	if !ok {
		result = OutcomeFailure
	}
	m.ContainerOpens.WithLabelValues(result).Inc()
}

// SetRegistry sets the registry gauges
func (m *Metrics) SetRegistry(open, unavailable, records int) {
	if m == nil {
		return
	}
	m.ContainersOpen.Set(float64(open))
	m.ContainersUnavailable.Set(float64(unavailable))
	m.CatalogRecords.Set(float64(records))
}

// RecordPrewarmBatch records one prewarm drain
func (m *Metrics) RecordPrewarmBatch(loaded, skipped, failed int) {
	if m == nil {
		return
	}
	m.PrewarmBatches.Inc()
	m.PrewarmItems.WithLabelValues("loaded").Add(float64(loaded))
	m.PrewarmItems.WithLabelValues("skipped").Add(float64(skipped))
	m.PrewarmItems.WithLabelValues("failed").Add(float64(failed))
}

// SetPrewarmQueue sets the prewarm queue gauge
func (m *Metrics) SetPrewarmQueue(n int) {
	if m == nil {
		return
	}
	m.PrewarmQueue.Set(float64(n))
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
