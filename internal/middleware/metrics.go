package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/service"
)

// Metrics records method, route and latency for every request. Routes
// are reported by their registered template so path parameters do not
// blow up label cardinality; unmatched requests fall back to the raw
// path.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
