package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// ComponentStatus is the outcome of one health check
type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler provides health check endpoints
type HealthHandler struct {
	checks  map[string]HealthCheck
	started time.Time
}

// NewHealthHandler creates a health handler over the named checks
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &HealthHandler{
		checks:  checks,
		started: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.healthCheck)
	router.GET("/health/ready", h.healthCheck)
	router.GET("/health/live", h.livenessCheck)
}

// healthCheck runs every dependency check
func (h *HealthHandler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	start := time.Now()
	statuses, healthy := h.run(ctx)

	body := gin.H{
		"status":     overallStatus(healthy),
		"timestamp":  time.Now().Format(time.RFC3339),
		"duration":   time.Since(start).String(),
		"components": statuses,
	}

	if healthy {
		c.JSON(http.StatusOK, body)
	} else {
		c.JSON(http.StatusServiceUnavailable, body)
	}
}

// livenessCheck succeeds as long as the process can respond
func (h *HealthHandler) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).String(),
	})
}

func (h *HealthHandler) run(ctx context.Context) (map[string]ComponentStatus, bool) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	statuses := make(map[string]ComponentStatus, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			statuses[name] = ComponentStatus{Status: "unhealthy", Error: err.Error()}
			continue
		}
		statuses[name] = ComponentStatus{Status: "healthy"}
	}
	return statuses, healthy
}

func overallStatus(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}
