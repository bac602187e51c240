// Package httpapi exposes the service over HTTP: the LINE webhook, the
// token-gated admin API, health and metrics, and the dev console.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Webhook *WebhookHandler
	Admin   *AdminHandler

	// DevChat serves the WebSocket dev console when enabled.
	DevChat http.Handler

	MetricsHandler http.Handler

	// AdminToken gates /api routes. Empty disables the gate, which is
	// only acceptable for local runs.
	AdminToken string
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if cfg.Logger != nil {
		r.Use(requestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Webhook != nil {
		r.Post("/webhook/line", cfg.Webhook.HandleLine)
	}

	if cfg.DevChat != nil {
		r.Mount("/dev/chat", cfg.DevChat)
	}

	if cfg.Admin != nil {
		r.Route("/api", func(api chi.Router) {
			api.Use(requireAdminToken(cfg.AdminToken))
			api.Post("/requests", cfg.Admin.CreateRequest)
			api.Get("/requests", cfg.Admin.ListRequests)
			api.Get("/requests/{id}", cfg.Admin.GetRequest)
			api.Post("/requests/{id}/responses", cfg.Admin.InjectResponse)
			api.Delete("/requests/{id}", cfg.Admin.CancelRequest)
			api.Get("/available-pharmacists", cfg.Admin.AvailablePharmacists)
			api.Get("/statistics", cfg.Admin.Statistics)
		})
	}

	return r
}
