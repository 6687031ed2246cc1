package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency check run by the health endpoint.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	service  string
	version  string
	required map[string]Pinger
	optional map[string]Pinger
}

// NewHealthHandler takes the checks the service cannot run without and the
// ones it can degrade around (the verification lock falls back to the
// reference constraint).
func NewHealthHandler(service, version string, required, optional map[string]Pinger) *HealthHandler {
	return &HealthHandler{service: service, version: version, required: required, optional: optional}
}

// Health reports 503 only when a required check fails. A failing optional
// check leaves the status code at 200 and marks the service degraded.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.required)+len(h.optional))
	run := func(checks map[string]Pinger) bool {
		ok := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				ok = false
				continue
			}
			results[name] = "ok"
		}
		return ok
	}
	requiredOK := run(h.required)
	optionalOK := run(h.optional)

	status, state := http.StatusOK, "healthy"
	switch {
	case !requiredOK:
		status, state = http.StatusServiceUnavailable, "unhealthy"
	case !optionalOK:
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC(),
		"service":   h.service,
		"version":   h.version,
		"checks":    results,
	})
}
