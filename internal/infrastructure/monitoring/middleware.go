package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection. Paths are
// labelled by route template so that path parameters do not explode the
// label space.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			reqSize,
			int64(max(c.Writer.Size(), 0)),
		)
	}
}

// Timer measures operation duration
type Timer struct {
	start  time.Time
	record func(time.Duration)
}

// NewTimer starts a timer that hands its elapsed time to record
func NewTimer(record func(time.Duration)) *Timer {
	return &Timer{start: time.Now(), record: record}
}

// Stop records and returns the elapsed time
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	if t.record != nil {
		t.record(d)
	}
	return d
}
