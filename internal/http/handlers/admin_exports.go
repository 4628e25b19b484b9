package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking-bot/internal/compliance"
	"github.com/wolfman30/clinic-booking-bot/internal/export"
	"github.com/wolfman30/clinic-booking-bot/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-bot/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-bot/internal/storage"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Exporter regenerates a table spreadsheet.
type Exporter interface {
	Export(ctx context.Context, table string) (export.Result, error)
}

// AuditLogger records operator actions.
type AuditLogger interface {
	Log(ctx context.Context, eventType compliance.AuditEventType, userID string, details any) error
}

// AdminExportsHandler serves freshly generated table exports over HTTP.
type AdminExportsHandler struct {
	exporter Exporter
	audit    AuditLogger
	metrics  *metrics.BotMetrics
	logger   *logging.Logger
}

// NewAdminExportsHandler wires the handler. audit and m may be nil.
func NewAdminExportsHandler(exporter Exporter, audit AuditLogger, m *metrics.BotMetrics, logger *logging.Logger) *AdminExportsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminExportsHandler{exporter: exporter, audit: audit, metrics: m, logger: logger}
}

// Download handles GET /admin/exports/{table}. Empty tables answer 204.
func (h *AdminExportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	if !storage.IsKnownTable(table) {
		writeError(w, http.StatusNotFound, "unknown table")
		return
	}

	actor := "api:" + middleware.AdminSubject(r.Context())
	if h.audit != nil {
		if err := h.audit.Log(r.Context(), compliance.EventExport, actor, map[string]string{"table": table, "via": "http"}); err != nil {
			h.logger.Warn("audit log failed", "table", table, "error", err)
		}
	}

	res, err := h.exporter.Export(r.Context(), table)
	if err != nil {
		h.metrics.ObserveExport(table, "error")
		h.logger.Error("export failed", "table", table, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	if res.Empty {
		h.metrics.ObserveExport(table, "empty")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	f, err := os.Open(res.Path)
	if err != nil {
		h.metrics.ObserveExport(table, "error")
		h.logger.Error("open export file", "path", res.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	h.metrics.ObserveExport(table, "ok")
	name := filepath.Base(res.Path)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
