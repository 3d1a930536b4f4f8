package periods

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/lock-status", h.LockStatus)
	r.Get("/{id}", h.Show)
	r.Post("/{id}/close", h.Close)
}
