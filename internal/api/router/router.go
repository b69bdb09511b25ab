// Package router assembles the HTTP surface: the public webhook and
// health endpoints plus the JWT-protected admin routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/citabot/citabot/internal/http/handlers"
	httpmiddleware "github.com/citabot/citabot/internal/http/middleware"
	"github.com/citabot/citabot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	WebhookHandler  http.Handler
	MetricsHandler  http.Handler
	AdminBookings   *handlers.AdminBookingsHandler
	AdminAuthSecret string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.WebhookHandler != nil {
		r.Post("/webhook/whatsapp", cfg.WebhookHandler.ServeHTTP)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.AdminBookings != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/bookings/{assistantNumber}/{clientNumber}", cfg.AdminBookings.GetIndex)
		})
	}

	return r
}
