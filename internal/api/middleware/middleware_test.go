package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "success"})
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig()))
	router.GET("/assets/:id", okHandler)

	tests := []struct {
		name           string
		method         string
		origin         string
		wantStatus     int
		wantCORSHeader bool
	}{
		{"simple GET request with origin", "GET", "http://localhost:3000", http.StatusOK, true},
		{"preflight OPTIONS request", "OPTIONS", "http://localhost:3000", http.StatusNoContent, true},
		{"no origin header", "GET", "", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/assets/a1", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == "OPTIONS" {
				req.Header.Set("Access-Control-Request-Method", "GET")
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCORSHeader {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"), "CORS header should be set")
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Contains(t, cfg.AllowOrigins, "*")
	assert.Contains(t, cfg.AllowMethods, "GET")
	assert.Contains(t, cfg.AllowMethods, "POST")
	assert.Contains(t, cfg.AllowHeaders, RequestIDHeader)
	assert.Contains(t, cfg.ExposeHeaders, RequestIDHeader)
	assert.False(t, cfg.AllowCredentials)
	assert.Equal(t, 12*time.Hour, cfg.MaxAge)
}

func serve(router *gin.Engine, remote string) int {
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.GET("/test", okHandler)

	// First 2 requests should succeed (burst capacity)
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(router, "192.168.1.1:1234"), "Request %d should succeed", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "192.168.1.1:1234"))
}

func TestRateLimitDifferentClients(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))
	router.GET("/test", okHandler)

	assert.Equal(t, http.StatusOK, serve(router, "192.168.1.1:1234"))
	assert.Equal(t, http.StatusOK, serve(router, "192.168.1.2:1234"), "different IP has its own bucket")
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "192.168.1.1:1234"))
}

func TestRateLimitEvictsIdleClients(t *testing.T) {
	l := &limiters{
		cfg:       RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute},
		clients:   make(map[string]*client),
		lastSweep: time.Unix(0, 0),
	}
	start := time.Unix(1000, 0)

	l.get("10.0.0.1", start)
	l.get("10.0.0.2", start.Add(30*time.Second))
	assert.Equal(t, 2, l.size())

	// The sweep runs once per TTL and drops clients idle longer than it
	l.get("10.0.0.3", start.Add(2*time.Minute))
	assert.Equal(t, 1, l.size())
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 2, Burst: 2}))
	router.GET("/test", okHandler)

	for i := 0; i < 2; i++ {
		remote := fmt.Sprintf("192.168.1.%d:1234", i+1)
		assert.Equal(t, http.StatusOK, serve(router, remote), "Request %d should succeed", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "192.168.1.9:1234"))
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()

	assert.Equal(t, 100, cfg.RequestsPerSecond)
	assert.Equal(t, 200, cfg.Burst)
	assert.Equal(t, 10*time.Minute, cfg.IdleTTL)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	router := setupTestRouter()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	generated := w.Header().Get(RequestIDHeader)
	assert.Contains(t, generated, "http_")
	assert.Equal(t, generated, w.Body.String())

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "client-supplied", w.Header().Get(RequestIDHeader))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, 2, logs.FilterMessage("HTTP request").Len())
	failed := logs.FilterMessage("HTTP request failed").All()
	if assert.Len(t, failed, 1) {
		assert.Equal(t, zap.ErrorLevel, failed[0].Level)
		assert.EqualValues(t, 500, failed[0].ContextMap()["status"])
	}
}

func BenchmarkRateLimit(b *testing.B) {
	router := setupTestRouter()
	router.Use(RateLimit(DefaultRateLimitConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:1234"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
