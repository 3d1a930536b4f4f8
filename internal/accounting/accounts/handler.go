package accounts

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
)

// Handler exposes the chart of accounts over JSON.
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
	filter := ListFilter{
		Type:            AccountType(r.URL.Query().Get("type")),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}
	items, err := h.service.List(r.Context(), scope.CompanyID, filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list accounts", err)
		return
	}
	if items == nil {
		items = []Account{}
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
	account, err := h.service.Get(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateAccountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Create(r.Context(), scope.CompanyID, req)
	if err != nil {
		httpx.Fail(w, h.logger, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateAccountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.Update(r.Context(), scope.CompanyID, id, req)
	if err != nil {
		httpx.Fail(w, h.logger, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.Delete(r.Context(), scope.CompanyID, id); err != nil {
		httpx.Fail(w, h.logger, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
