package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the public and admin routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public
	r.Get("/health", h.HealthCheck)
	r.Post("/subscribe", h.HandleSubscribe)
	r.Get("/unsubscribe/{token}", h.HandleUnsubscribe)
	r.Post("/contact", h.HandleContact)
	r.Get("/api/subscribers/count", h.HandleSubscriberCount)

	// Admin
	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.HandleAdminLogin)
		r.Post("/logout", h.HandleAdminLogout)

		// Everything else requires a session.
		r.Group(func(r chi.Router) {
			r.Use(h.authManager.RequireAuth)

			r.Get("/dashboard", h.HandleDashboard)
			r.Get("/subscribers", h.HandleListSubscribers)

			r.Get("/campaigns", h.HandleListCampaigns)
			r.Post("/campaigns", h.HandleCreateCampaign)
			r.Get("/campaigns/{id}", h.HandleGetCampaign)
			r.Delete("/campaigns/{id}", h.HandleDeleteCampaign)
			r.Post("/campaigns/{id}/send", h.HandleSendCampaign)
			r.Post("/campaigns/{id}/send-async", h.HandleSendCampaignAsync)
			r.Get("/campaigns/{id}/preview", h.HandlePreviewCampaign)
			r.Post("/campaigns/{id}/schedule", h.HandleScheduleCampaign)

			r.Get("/messages", h.HandleListMessages)
			r.Post("/messages/{id}/read", h.HandleMarkMessageRead)
		})
	})

	return r
}
