package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jia-app/venuepricing/internal/log"
	"github.com/jia-app/venuepricing/internal/metrics"
	"github.com/jia-app/venuepricing/internal/ratelimit"
	"github.com/jia-app/venuepricing/internal/server/response"
)

// RateLimit rejects clients that exceed the limiter's quota. Limiter
// failures let the request through.
func RateLimit(limiter ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		allowed, err := limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			log.Warn(ctx, "Rate limiter unavailable, allowing request", zap.Error(err))
			metrics.RecordError("rate_limit", "http")
			c.Next()
			return
		}
		if !allowed {
			response.Abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}

		c.Next()
	}
}
