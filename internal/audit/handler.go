package audit

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/platform/httpx"
)

// defaultWindow applies when the caller omits from.
const defaultWindow = 7 * 24 * time.Hour

type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		httpx.Fail(w, h.logger, "audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.service.ExportCSV(r.Context(), filters, &buf); err != nil {
		httpx.Fail(w, h.logger, "export audit timeline", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil && h.logger != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) parseFilters(r *http.Request) (Filters, error) {
	scope, err := httpx.Scope(r)
	if err != nil {
		return Filters{}, err
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		return Filters{}, err
	}
	if to == nil {
		today := h.now().UTC().Truncate(24 * time.Hour)
		to = &today
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		return Filters{}, err
	}
	if from == nil {
		start := to.Add(-defaultWindow)
		from = &start
	}
	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		return Filters{}, err
	}
	pageSize, err := httpx.QueryInt(r, "page_size", defaultPageSize)
	if err != nil {
		return Filters{}, err
	}
	q := r.URL.Query()
	return Filters{
		CompanyID: scope.CompanyID,
		From:      *from,
		To:        *to,
		Actor:     strings.TrimSpace(q.Get("actor")),
		Entity:    strings.TrimSpace(q.Get("entity")),
		EntityID:  strings.TrimSpace(q.Get("entity_id")),
		Action:    strings.TrimSpace(q.Get("action")),
		Page:      page,
		PageSize:  pageSize,
	}, nil
}
