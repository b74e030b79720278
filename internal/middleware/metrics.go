package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusflow/registration-api/internal/service"
)

// Metrics times each request and feeds the HTTP histogram and counter.
// Unmatched routes are labelled by raw URL path so 404s stay visible
// without exploding route cardinality elsewhere.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
