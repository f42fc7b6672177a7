package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsPrivateRegistries(t *testing.T) {
	// Two instances on separate registries never collide
	m1 := NewMetrics(prometheus.NewRegistry())
	m2 := NewMetrics(prometheus.NewRegistry())
	require.NotNil(t, m1)
	require.NotNil(t, m2)
}

func TestRecordLoad(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLoad(ModeSync, "ui", OutcomeSuccess, 0)
	m.RecordLoad(ModeAsync, "ui", OutcomeFailure, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues(ModeSync, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues(ModeAsync, OutcomeFailure)))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Loads)
	assert.Equal(t, int64(1), snap.LoadFailures)
}

func TestTimer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	NewTimer(m, ModeSync, "ui").Stop(nil)
	NewTimer(m, ModeSync, "ui").Stop(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues(ModeSync, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Loads.WithLabelValues(ModeSync, OutcomeFailure)))
}

func TestGauges(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetCache(4, 1)
	m.SetRegistry(3, 2, 10)
	m.SetPrewarmQueue(7)
	m.RecordPrewarmBatch(2, 3, 0)
	m.IncCacheHits()
	m.IncDedupJoins()
	m.RecordContainerOpen(false)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.CachedEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingRequests))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ContainersOpen))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContainersUnavailable))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.CatalogRecords))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PrewarmQueue))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PrewarmItems.WithLabelValues("loaded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PrewarmItems.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContainerOpens.WithLabelValues(OutcomeFailure)))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.DedupJoins)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLoad(ModeSync, "ui", OutcomeSuccess, 0)
		m.IncCacheHits()
		m.SetCache(1, 1)
		m.RecordPrewarmBatch(1, 1, 1)
		NewTimer(m, ModeAsync, "ui").Stop(nil)
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/assets/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(Handler(reg)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/a1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/assets/:id", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "assetd_http_requests_total")
	assert.Contains(t, w.Body.String(), "assetd_uptime_seconds")
}
