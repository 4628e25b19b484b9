package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports database reachability.
type HealthHandler struct {
	db      Pinger
	timeout time.Duration
	logger  *logging.Logger
}

// NewHealthHandler builds a health handler around db.
func NewHealthHandler(db Pinger, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{db: db, timeout: 2 * time.Second, logger: logger}
}

// ServeHTTP answers GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"})
}
