package reconciliation

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Start)
	r.Get("/{id}", h.Show)
	r.Get("/{id}/items", h.Items)
	r.Put("/{id}/items", h.ClearItem)
	r.Get("/{id}/summary", h.Summary)
	r.Post("/{id}/complete", h.Complete)
}
