// Package routes defines the HTTP routing configuration.
package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/quorumhq/chatgate/app"
	"github.com/quorumhq/chatgate/handlers"
)

// NewRouter creates and configures the application router
func NewRouter(deps *app.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handlers.HealthCheckHandler(deps))
	r.Get("/readyz", handlers.ReadinessCheckHandler(deps))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/handoff", handlers.HandoffHandler(deps))
		r.Get("/verify", handlers.VerifyHandler(deps))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Require)
			r.Post("/logout", handlers.LogoutHandler(deps))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Require)
			r.Use(deps.Auth.RequireDeveloper)
			r.Post("/test-role", handlers.TestRoleHandler(deps))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.Auth.Require)

		r.Route("/chat", func(r chi.Router) {
			r.Post("/messages", handlers.ChatMessageHandler(deps))
		})
	})

	return r
}
