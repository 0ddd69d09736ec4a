package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ssoguard/pkg/clock"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// HealthChecker reports the state of one dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (map[string]interface{}, error)
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) (map[string]interface{}, error)

// HealthCheck implements HealthChecker.
func (f HealthCheckerFunc) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	return f(ctx)
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checkers map[string]HealthChecker
	timeout  time.Duration
	clock    clock.Clock
	log      logger.Logger
}

// NewHealthHandler creates a new HealthHandler. Readiness fails when any checker fails.
func NewHealthHandler(checkers map[string]HealthChecker, clk clock.Clock, log logger.Logger) *HealthHandler {
	if clk == nil {
		clk = clock.System()
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &HealthHandler{
		checkers: checkers,
		timeout:  3 * time.Second,
		clock:    clk,
		log:      log.WithComponent("health"),
	}
}

// Liveness godoc
// @Summary  Liveness probe
// @Tags     health
// @Success  200 {object} map[string]interface{}
// @Router   /health/live [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": h.clock.Now().UTC(),
	})
}

// Readiness godoc
// @Summary  Readiness probe, checks the revocation backend
// @Tags     health
// @Success  200 {object} map[string]interface{}
// @Failure  503 {object} map[string]interface{}
// @Router   /health/ready [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks, healthy := h.performChecks(ctx)
	status, httpStatus := "ready", http.StatusOK
	if !healthy {
		status, httpStatus = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": h.clock.Now().UTC(),
		"checks":    checks,
	})
}

func (h *HealthHandler) performChecks(ctx context.Context) (map[string]interface{}, bool) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		healthy = true
	)
	checks := make(map[string]interface{}, len(h.checkers))

	wg.Add(len(h.checkers))
	for name, checker := range h.checkers {
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			details, err := checker.HealthCheck(ctx)
			result := gin.H{"status": "ok"}
			if details != nil {
				result["details"] = details
			}
			if err != nil {
				result["status"] = "error"
				result["error"] = err.Error()
				h.log.Warn(ctx, "health check failed", logger.String("check", name), logger.Error(err))
			}

			mu.Lock()
			defer mu.Unlock()
			checks[name] = result
			if err != nil {
				healthy = false
			}
		}(name, checker)
	}
	wg.Wait()
	return checks, healthy
}
