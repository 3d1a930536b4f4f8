package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	today   func() shared.Date
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, today: func() shared.Date { return shared.DateOf(time.Now()) }}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/profit-and-loss", h.ProfitAndLoss)
	r.Get("/balance-sheet", h.BalanceSheet)
	r.Get("/cash-summary", h.CashSummary)
}

func (h *Handler) dateParam(r *http.Request, name string, fallback shared.Date) (shared.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return shared.ParseDate(raw)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := h.dateParam(r, "as_of", h.today())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.TrialBalance(r.Context(), scope.CompanyID, asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	today := h.today()
	from, err := h.dateParam(r, "from", shared.NewDate(today.Year(), time.January, 1))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := h.dateParam(r, "to", today)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.ProfitAndLoss(r.Context(), scope.CompanyID, from, to)
	if err != nil {
		httpx.Fail(w, h.logger, "profit and loss", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := h.dateParam(r, "as_of", h.today())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.BalanceSheet(r.Context(), scope.CompanyID, asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) CashSummary(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := h.dateParam(r, "as_of", h.today())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.CashSummary(r.Context(), scope.CompanyID, asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "cash summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
