package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jia-app/venuepricing/internal/log"
)

// Timeout bounds the request context. Handlers observe the deadline through
// the context they pass downstream.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn(ctx, "Request timeout exceeded",
				zap.String("path", c.Request.URL.Path),
				zap.Duration("timeout", timeout))
		}
	}
}
