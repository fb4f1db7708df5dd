package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voice2fire/pulsewatch/internal/api/alerts"
	"github.com/voice2fire/pulsewatch/internal/api/auth"
	"github.com/voice2fire/pulsewatch/internal/api/middleware"
	"github.com/voice2fire/pulsewatch/internal/api/rules"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSONError(w, ErrMethodNotAllowed)
	})

	// API v1 routes (all protected)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtService))

		r.Route("/alerts", func(r chi.Router) {
			alertHandler := alerts.NewHandler(s.storage)

			// Read endpoints (any authenticated caller)
			r.Get("/", alertHandler.List)
			r.Get("/{id}", alertHandler.GetByID)

			// Resolution requires operator or admin
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOperator)
				r.Post("/{id}/resolve", alertHandler.Resolve)
			})
		})

		r.Route("/rules", func(r chi.Router) {
			ruleHandler := rules.NewHandler(s.storage)

			r.Get("/", ruleHandler.List)

			// Rule mutation is admin-only
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/reset", ruleHandler.Reset)
			})
		})
	})

	// Health check (public)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		OK(w, map[string]string{"status": "ok"})
	})

	return r
}
