package periods

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.List(r.Context(), scope.CompanyID)
	if err != nil {
		httpx.Fail(w, h.logger, "list periods", err)
		return
	}
	if items == nil {
		items = []Period{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.Get(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreatePeriodRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.Create(r.Context(), scope.CompanyID, req)
	if err != nil {
		httpx.Fail(w, h.logger, "create period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.Close(r.Context(), scope.CompanyID, id, scope.Actor)
	if err != nil {
		httpx.Fail(w, h.logger, "close period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

// LockStatus answers whether ?date= is frozen by a closed period.
func (h *Handler) LockStatus(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	locked, err := h.service.IsLocked(r.Context(), scope.CompanyID, date)
	if err != nil {
		httpx.Fail(w, h.logger, "period lock status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"date": date, "locked": locked})
}
