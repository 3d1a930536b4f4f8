package audit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Exports scan the whole range, so they get a tighter budget than the API.
const (
	exportLimit  = 10
	exportWindow = time.Minute
)

func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportLimit, exportWindow,
		httprate.WithKeyFuncs(exportKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests", "audit exports are limited per minute")
		}),
	)
	r.Get("/", h.Timeline)
	r.With(limiter).Get("/export.csv", h.Export)
}

func exportKey(r *http.Request) (string, error) {
	if scope, ok := shared.ScopeFromContext(r.Context()); ok {
		return fmt.Sprintf("audit-export:%d", scope.CompanyID), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "audit-export:ip:" + key, nil
}
