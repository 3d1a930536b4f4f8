package banking

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers bank account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.ListAccounts)
	r.Post("/", h.CreateAccount)
	r.Get("/{id}", h.ShowAccount)
	r.Post("/{id}/transactions", h.Import)
}

// MountTransactionRoutes registers bank transaction routes.
func (h *Handler) MountTransactionRoutes(r chi.Router) {
	r.Get("/", h.ListTransactions)
	r.Get("/{id}", h.ShowTransaction)
	r.Patch("/{id}", h.UpdateStatus)
}
