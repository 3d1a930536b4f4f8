package documents

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/aging", h.Aging)
	r.Get("/{id}", h.Show)
	r.Patch("/{id}", h.UpdateStatus)
	r.Post("/{id}/post", h.Post)
}
