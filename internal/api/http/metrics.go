package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/loader"
	"github.com/GriffinCanCode/assetcatalog/internal/infrastructure/monitoring"
)

// MetricsSnapshot represents a snapshot of the service metrics
type MetricsSnapshot struct {
	Timestamp time.Time                  `json:"timestamp"`
	Service   monitoring.MetricsSnapshot `json:"service"`
	Cache     loader.CacheStats          `json:"cache"`
	Latency   loader.LatencySummary      `json:"latency"`
	Summary   MetricsSummary             `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests   int64   `json:"total_requests"`
	ErrorRate       float64 `json:"error_rate"`
	LoadFailureRate float64 `json:"load_failure_rate"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	OpenContainers  int     `json:"open_containers"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// MetricsJSON returns the aggregated metrics as JSON
func (h *Handlers) MetricsJSON(c *gin.Context) {
	snap := h.engine.Snapshot()
	service := h.metrics.Snapshot()

	c.JSON(http.StatusOK, MetricsSnapshot{
		Timestamp: time.Now(),
		Service:   service,
		Cache:     snap.Cache,
		Latency:   snap.Latency,
		Summary: MetricsSummary{
			TotalRequests:   service.TotalRequests,
			ErrorRate:       ratio(service.TotalErrors, service.TotalRequests),
			LoadFailureRate: ratio(service.LoadFailures, service.Loads),
			CacheHitRate:    ratio(service.CacheHits, service.CacheHits+service.DedupJoins+service.Loads),
			OpenContainers:  snap.Registry.Open,
			UptimeSeconds:   service.UptimeSeconds,
		},
	})
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
