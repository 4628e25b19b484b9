package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wolfman30/clinic-booking-bot/internal/compliance"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

// AuditQuerier reads the audit trail.
type AuditQuerier interface {
	QueryEvents(ctx context.Context, filter compliance.AuditFilter) ([]compliance.AuditEvent, error)
}

// AdminAuditHandler lists audit events.
type AdminAuditHandler struct {
	audit  AuditQuerier
	logger *logging.Logger
}

func NewAdminAuditHandler(audit AuditQuerier, logger *logging.Logger) *AdminAuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAuditHandler{audit: audit, logger: logger}
}

// List handles GET /admin/audit?user_id=&event_type=&since=&limit=.
// since is RFC 3339.
func (h *AdminAuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := compliance.AuditFilter{
		UserID:    q.Get("user_id"),
		EventType: compliance.AuditEventType(q.Get("event_type")),
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("query audit events", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if events == nil {
		events = []compliance.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
