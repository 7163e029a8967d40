package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/resources", func(r chi.Router) {
		r.Post("/", h.CreateResource)
		r.Get("/", h.ListResources)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetResource)
			r.Put("/", h.UpdateResource)
			r.Delete("/", h.DeleteResource)
			r.Post("/registrations", h.SubmitRegistration)
			r.Get("/registrations", h.ListResourceRegistrations)
		})
	})

	r.Route("/registrations", func(r chi.Router) {
		r.Get("/", h.ListRegistrations)
		r.Get("/{id}", h.GetRegistration)
		r.Delete("/{id}", h.RejectRegistration)
		r.Post("/{id}/approve", h.ApproveRegistration)
		r.Put("/{id}/lessons/{lessonId}", h.ToggleLesson)
	})

	r.Route("/users/{userId}/notifications", func(r chi.Router) {
		r.Get("/", h.ListNotifications)
		r.Post("/{id}/read", h.MarkNotificationRead)
	})

	return r
}
