package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pinkypartner/pinkypartner/internal/cache"
	"github.com/pinkypartner/pinkypartner/pkg/errors"
	"github.com/pinkypartner/pinkypartner/pkg/logger"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// RateLimit limits requests per (client IP, route) within a fixed window using a shared
// counter. Counter failures let the request through.
func RateLimit(counter cache.Counter, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := "ratelimit:" + c.ClientIP() + "|" + c.Request.Method + " " + path

		count, resetIn, err := counter.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.WithModule("http").Warn("rate limit counter unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if int(count) > maxRequests {
			c.Header("Retry-After", strconv.Itoa(max(1, int(resetIn.Seconds()))))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
