package reconciliation

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
	bankAccountID, err := httpx.QueryInt64(r, "bank_account_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sessions, err := h.service.List(r.Context(), scope.CompanyID, bankAccountID)
	if err != nil {
		httpx.Fail(w, h.logger, "list reconciliations", err)
		return
	}
	if sessions == nil {
		sessions = []Session{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": sessions})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req StartSessionRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	session, err := h.service.StartSession(r.Context(), scope.CompanyID, req)
	if err != nil {
		httpx.Fail(w, h.logger, "start reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := target(w, r)
	if !ok {
		return
	}
	session, err := h.service.Get(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := target(w, r)
	if !ok {
		return
	}
	items, err := h.service.Items(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "list reconciliation items", err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) ClearItem(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := target(w, r)
	if !ok {
		return
	}
	var req ClearItemRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.ClearItem(r.Context(), scope.CompanyID, id, req)
	if err != nil {
		httpx.Fail(w, h.logger, "clear reconciliation item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := target(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "reconciliation summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := target(w, r)
	if !ok {
		return
	}
	session, summary, err := h.service.Complete(r.Context(), scope.CompanyID, id, scope.Actor)
	if err != nil {
		httpx.Fail(w, h.logger, "complete reconciliation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"session": session, "summary": summary})
}

func target(w http.ResponseWriter, r *http.Request) (shared.Scope, int64, bool) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Scope{}, 0, false
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Scope{}, 0, false
	}
	return scope, id, true
}
