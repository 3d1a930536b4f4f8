package payments

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Handler serves customer payments or bill payments depending on kind.
type Handler struct {
	logger  *slog.Logger
	service *Service
	kind    documents.Kind
}

func NewHandler(logger *slog.Logger, service *Service, kind documents.Kind) *Handler {
	return &Handler{logger: logger, service: service, kind: kind}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListFilter{Kind: h.kind, Status: Status(r.URL.Query().Get("status"))}
	if filter.ContactID, err = httpx.QueryInt64(r, "contact_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.Page, err = httpx.QueryInt(r, "page", 1); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.PerPage, err = httpx.QueryInt(r, "per_page", 50); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.List(r.Context(), scope.CompanyID, filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list payments", err)
		return
	}
	if items == nil {
		items = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	payment, err := h.owned(r, scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Kind = h.kind
	payment, err := h.service.RecordPayment(r.Context(), scope.CompanyID, req)
	if err != nil {
		httpx.Fail(w, h.logger, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req ApplyRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.owned(r, scope.CompanyID, id); err != nil {
		httpx.Fail(w, h.logger, "apply payment", err)
		return
	}
	result, err := h.service.Apply(r.Context(), scope.CompanyID, id, scope.Actor, req)
	if err != nil {
		httpx.Fail(w, h.logger, "apply payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if _, err := h.owned(r, scope.CompanyID, id); err != nil {
		httpx.Fail(w, h.logger, "void payment", err)
		return
	}
	payment, err := h.service.Void(r.Context(), scope.CompanyID, id, scope.Actor)
	if err != nil {
		httpx.Fail(w, h.logger, "void payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (shared.Scope, int64, bool) {
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

func (h *Handler) owned(r *http.Request, companyID, id int64) (Payment, error) {
	payment, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		return Payment{}, err
	}
	if payment.Kind != h.kind {
		return Payment{}, fmt.Errorf("%w: payment", shared.ErrNotFound)
	}
	return payment, nil
}
