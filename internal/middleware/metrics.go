package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"supplyhub/internal/metrics"
)

// RequestMetrics records request latency labelled by the matched route
// pattern, so path parameters do not explode the label set.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
