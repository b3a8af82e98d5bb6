package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jia-app/venuepricing/internal/log"
	"github.com/jia-app/venuepricing/internal/metrics"
	"github.com/jia-app/venuepricing/internal/server/response"
)

// Recovery turns a handler panic into a 500 envelope
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error(c.Request.Context(), "Recovered from panic in HTTP handler",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("panic", fmt.Sprint(recovered)),
					zap.Stack("stack"))
				metrics.RecordError("panic", "http")

				response.Abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()

		c.Next()
	}
}
