package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jia-app/venuepricing/internal/ratelimit"
	"github.com/jia-app/venuepricing/internal/server/middleware"
	"github.com/jia-app/venuepricing/internal/server/response"
)

// RouterConfig lists what the router serves
type RouterConfig struct {
	Quotes         *QuoteHandler
	Health         *HealthHandler
	RateLimiter    ratelimit.RateLimiter // nil disables rate limiting
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with the middleware chain
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Metrics(),
		middleware.Recovery(),
	)

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(r)
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.RateLimiter != nil {
		v1.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	if cfg.Quotes != nil {
		cfg.Quotes.RegisterRoutes(v1)
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})

	return r
}
