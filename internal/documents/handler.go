package documents

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Handler serves one document kind; invoices and bills mount separate handlers.
type Handler struct {
	logger  *slog.Logger
	service *Service
	kind    Kind
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service, kind Kind) *Handler {
	return &Handler{logger: logger, service: service, kind: kind, now: time.Now}
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
	docs, page, err := h.service.List(r.Context(), scope.CompanyID, filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list documents", err)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": docs, "pagination": page})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	doc, err := h.owned(r, scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateDocumentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Kind = h.kind
	doc, err := h.service.Create(r.Context(), scope.CompanyID, req)
	if err != nil {
		httpx.Fail(w, h.logger, "create document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.owned(r, scope.CompanyID, id); err != nil {
		httpx.Fail(w, h.logger, "update document", err)
		return
	}
	doc, err := h.service.UpdateStatus(r.Context(), scope.CompanyID, id, scope.Actor, req)
	if err != nil {
		httpx.Fail(w, h.logger, "update document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req PostRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if _, err := h.owned(r, scope.CompanyID, id); err != nil {
		httpx.Fail(w, h.logger, "post document", err)
		return
	}
	doc, err := h.service.Post(r.Context(), scope.CompanyID, id, scope.Actor, req)
	if err != nil {
		httpx.Fail(w, h.logger, "post document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) Aging(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf := shared.DateOf(h.now())
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		if asOf, err = shared.ParseDate(raw); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	report, err := h.service.Aging(r.Context(), scope.CompanyID, h.kind, asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "document aging", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
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

// owned loads the document and hides documents of the other kind.
func (h *Handler) owned(r *http.Request, companyID, id int64) (Document, error) {
	doc, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Kind != h.kind {
		return Document{}, fmt.Errorf("%w: %s", shared.ErrNotFound, h.kind)
	}
	return doc, nil
}
