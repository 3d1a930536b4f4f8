package journals

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// createRequest posts immediately when Post is set, otherwise saves a draft.
type createRequest struct {
	EntryInput
	Post bool `json:"post"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, page, err := h.service.List(r.Context(), scope.CompanyID, filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list journals", err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries, "pagination": page})
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	var err error
	if filter.Page, err = httpx.QueryInt(r, "page", 1); err != nil {
		return ListFilter{}, err
	}
	if filter.PerPage, err = httpx.QueryInt(r, "per_page", 50); err != nil {
		return ListFilter{}, err
	}
	for name, dst := range map[string]**shared.Date{"from": &filter.From, "to": &filter.To} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		d, err := shared.ParseDate(raw)
		if err != nil {
			return ListFilter{}, err
		}
		*dst = &d
	}
	return filter, nil
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
	entry, err := h.service.Get(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var entry Entry
	if req.Post {
		entry, err = h.service.CreateAndPost(r.Context(), scope.CompanyID, scope.Actor, req.EntryInput)
	} else {
		entry, err = h.service.CreateDraft(r.Context(), scope.CompanyID, scope.Actor, req.EntryInput)
	}
	if err != nil {
		httpx.Fail(w, h.logger, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
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
	var req EntryInput
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.UpdateDraft(r.Context(), scope.CompanyID, id, req)
	if err != nil {
		httpx.Fail(w, h.logger, "update journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
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
	entry, err := h.service.Post(r.Context(), scope.CompanyID, id, scope.Actor)
	if err != nil {
		httpx.Fail(w, h.logger, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
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
	entry, err := h.service.Void(r.Context(), scope.CompanyID, id, scope.Actor)
	if err != nil {
		httpx.Fail(w, h.logger, "void journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}
