package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teofly/gallery-api/internal/domain"
	mw "github.com/teofly/gallery-api/internal/middleware"
	"github.com/teofly/gallery-api/internal/middleware/metrics"
	"github.com/teofly/gallery-api/internal/setup"
)

// New creates and configures the router with all the routes.
func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	h := deps.Handler

	r.Get("/health", deps.HealthHandler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Login eats a rate limit slot before any credential check.
			r.Group(func(r chi.Router) {
				r.Use(mw.RateLimit(deps.LoginLimiter, mw.ByIP))
				r.Post("/login", h.Login)
			})

			r.Post("/refresh-token", h.Refresh)
			r.Post("/create-first-admin", h.CreateFirstAdmin)

			// Routes below need a valid access token.
			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMw.RequireAuth())
				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.UpdateProfile)
				r.Put("/change-password", h.ChangePassword)
				r.Post("/logout", h.Logout)

				r.With(mw.RequireRole(domain.RoleAdmin)).Post("/register", h.Register)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMw.RequireAuth())
			r.Use(mw.RequireRole(domain.RoleAdmin))

			r.Get("/users", h.ListUsers)
			r.Put("/users/{id}/active", h.SetUserActive)
			r.Post("/users/{id}/revoke-tokens", h.RevokeTokens)
			r.Delete("/users/{id}", h.DeleteUser)
		})
	})

	return r
}
