package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks  map[string]Pinger
	profile string
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks may be nil.
func NewHealthHandler(profile string, checks map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, profile: profile, logger: logHandler(logger, "health")}
}

// HealthCheck reports liveness plus the state of every configured dependency.
// A failing dependency turns the status to "degraded" but keeps the 200: the
// trader itself still answers ticks without it.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for n := range h.checks {
		names = append(names, n)
	}
	sort.Strings(names)

	status := "ok"
	deps := make(map[string]string, len(names))
	for _, n := range names {
		if err := h.checks[n](ctx); err != nil {
			status = "degraded"
			deps[n] = err.Error()
			h.logger.WarnContext(ctx, "dependency unhealthy", slog.String("dependency", n), slog.String("error", err.Error()))
			continue
		}
		deps[n] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"profile":      h.profile,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
