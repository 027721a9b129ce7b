package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/zcore/pkg/journal"
	"github.com/marmos91/zcore/pkg/zfs"
)

// HealthCheckTimeout is the maximum time allowed for health check
// operations. This timeout applies to journal health checks to prevent
// a slow database from blocking health probes indefinitely.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is the engine open and the journal reachable?
type HealthHandler struct {
	client    *zfs.Client
	journal   *journal.Store
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
//
// The client may be nil, in which case readiness reports unhealthy. The
// journal may be nil when journaling is disabled; readiness then skips
// the journal check.
func NewHealthHandler(client *zfs.Client, journalStore *journal.Store) *HealthHandler {
	return &HealthHandler{
		client:    client,
		journal:   journalStore,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. This endpoint is designed
// for Kubernetes liveness probes and should always succeed as long as the
// HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "zcore",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK if the engine is open and, when journaling is enabled,
// the journal database answers a ping. Returns 503 Service Unavailable
// otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("engine not initialized"))
		return
	}

	journalStatus := "disabled"
	if h.journal != nil {
		ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
		defer cancel()

		if err := h.journal.Healthcheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("journal unreachable: "+err.Error()))
			return
		}
		journalStatus = "healthy"
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"engine":  "open",
		"journal": journalStatus,
	}))
}
