package contacts

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
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
	limit, err := httpx.QueryInt(r, "limit", 50)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	offset, err := httpx.QueryInt(r, "offset", 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.List(r.Context(), ListContactsRequest{
		CompanyID: scope.CompanyID,
		Type:      Type(r.URL.Query().Get("type")),
		Search:    r.URL.Query().Get("search"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		httpx.Fail(w, h.logger, "list contacts", err)
		return
	}
	if items == nil {
		items = []Contact{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
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
	contact, err := h.service.Get(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get contact", err)
		return
	}
	httpx.JSON(w, http.StatusOK, contact)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateContactRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	contact, err := h.service.Create(r.Context(), scope.CompanyID, req)
	if err != nil {
		httpx.Fail(w, h.logger, "create contact", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, contact)
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
	var req UpdateContactRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	contact, err := h.service.Update(r.Context(), scope.CompanyID, id, req)
	if err != nil {
		httpx.Fail(w, h.logger, "update contact", err)
		return
	}
	httpx.JSON(w, http.StatusOK, contact)
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
		httpx.Fail(w, h.logger, "delete contact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
