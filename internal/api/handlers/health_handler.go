package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

const healthCheckTimeout = 2 * time.Second

// SessionCounter reports live feed sessions
type SessionCounter interface {
	Len() int
}

// HealthCheck checks one backing service
type HealthCheck func(ctx context.Context) error

// HealthHandler answers liveness and readiness checks
type HealthHandler struct {
	sessions SessionCounter
	started  time.Time
	checks   map[string]HealthCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions, started: time.Now(), checks: map[string]HealthCheck{}}
}

// AddCheck registers a dependency check. Register checks before serving.
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Health handles GET /health. It answers 503 when any registered check fails.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}
	if h.sessions != nil {
		resp["feed_sessions"] = h.sessions.Len()
	}

	if len(h.checks) > 0 {
		names := make([]string, 0, len(h.checks))
		for name := range h.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		results := make(map[string]string, len(names))
		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := h.checks[name](ctx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("check", name).Msg("health check failed")
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				continue
			}
			results[name] = "ok"
		}
		resp["checks"] = results
	}

	respondWithJSON(w, status, resp)
}
