package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Get request size
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		// Process request
		c.Next()

		// Route template keeps asset ids out of the label set
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		metrics.RecordHTTPRequest(method, path, status, duration, reqSize, respSize)
	}
}

// Timer measures a host load
type Timer struct {
	start     time.Time
	metrics   *Metrics
	mode      string
	container string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, mode, container string) *Timer {
	return &Timer{
		start:     time.Now(),
		metrics:   metrics,
		mode:      mode,
		container: container,
	}
}

// Stop stops the timer and records the load with the outcome of err
func (t *Timer) Stop(err error) time.Duration {
	duration := time.Since(t.start)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	t.metrics.RecordLoad(t.mode, t.container, outcome, duration)
	return duration
}
