package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports process liveness and dependency health.
type HealthHandler struct {
	Checks  map[string]HealthCheck
	Timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{Checks: checks, Timeout: 2 * time.Second}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealth answers 200 when every check passes and 503 otherwise.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
