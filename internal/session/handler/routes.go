package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the API router, to be mounted at /api/v1. Only the
// session routes go through sessionMiddleware.
func (h *Handler) Routes(sessionMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/diseases", h.Diseases)
	r.Get("/options", h.Options)

	r.Route("/session", func(r chi.Router) {
		r.Use(sessionMiddleware)

		r.Get("/", h.Get)
		r.Delete("/", h.Reset)
		r.Post("/upload", h.Upload)
		r.Post("/diagnose", h.Diagnose)
		r.Post("/plan", h.RequestPlan)
		r.Get("/location", h.Location)
	})

	return r
}
