package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/designdesk/designdesk/caching"
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web/session"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig configures rate limiting
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyFunc           func(c *gin.Context) string
}

// DefaultRateLimitConfig limits by client IP.
func DefaultRateLimitConfig(requestsPerMinute int) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

// RateLimitMiddleware counts requests per key and path in one-minute windows.
// Over the limit the client is sent back to the page with an error notice.
// A non-positive limit disables the check.
func RateLimitMiddleware(counters *caching.Cache, config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.RequestsPerMinute <= 0 {
			c.Next()
			return
		}

		key := config.KeyFunc(c)
		rateLimitKey := "ratelimit:" + key + ":" + c.Request.URL.Path
		count := counters.Hit(rateLimitKey, time.Minute)

		remaining := config.RequestsPerMinute - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > config.RequestsPerMinute {
			logger.Warningf("Rate limit exceeded for %s on %s (count: %d)", key, c.Request.URL.Path, count)
			session.AddNotice(c, session.Error, "notices.rateLimited")
			c.Redirect(http.StatusSeeOther, c.Request.URL.Path)
			c.Abort()
			return
		}
		c.Next()
	}
}
