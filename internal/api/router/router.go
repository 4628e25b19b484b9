package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking-bot/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-bot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Health         http.Handler
	MetricsHandler http.Handler

	// Admin routes are mounted only when AdminAuthSecret is set.
	AdminAuthSecret string
	AdminExports    *handlers.AdminExportsHandler
	AdminAudit      *handlers.AdminAuditHandler
	AdminLimiter    *httpmiddleware.RateLimiter
}

// New creates the operator HTTP surface.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			if cfg.AdminLimiter != nil {
				admin.Use(httpmiddleware.RateLimit(cfg.AdminLimiter))
			}
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, cfg.Logger))
			if cfg.AdminExports != nil {
				admin.Get("/exports/{table}", cfg.AdminExports.Download)
			}
			if cfg.AdminAudit != nil {
				admin.Get("/audit", cfg.AdminAudit.List)
			}
		})
	}

	return r
}
