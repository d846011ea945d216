package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"pixelgrid/internal/handler/httperr"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	"github.com/gin-gonic/gin"
)

var ErrRateLimited = errs.New("rate limit exceeded")

// RateLimit throttles per owner (falling back to client IP) under the given bucket name.
// A nil limiter disables throttling; limiter failures let the request through.
func RateLimit(limiter shared.RateLimiter, bucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key, ok := GetOwner(c)
		if !ok {
			key = "ip:" + c.ClientIP()
		}

		decision, err := limiter.Allow(c.Request.Context(), bucket+":"+key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "bucket", bucket, "error", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if !decision.Allowed {
			seconds := int64(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.FormatInt(max(seconds, 1), 10))
			httperr.AbortWithError(c, http.StatusTooManyRequests, ErrRateLimited, "Too many requests", nil)
			return
		}
		c.Next()
	}
}
