package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-engine-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records one observation per request, labelled by the route template
// so that ids in grade and quiz paths do not explode label cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
