package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, seconds float64)
}

// Metrics records one observation per request labelled by the matched route template.
func Metrics(observer HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
