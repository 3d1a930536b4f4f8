package banking

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

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListAccounts(r.Context(), scope.CompanyID)
	if err != nil {
		httpx.Fail(w, h.logger, "list bank accounts", err)
		return
	}
	if items == nil {
		items = []BankAccount{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) ShowAccount(w http.ResponseWriter, r *http.Request) {
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
	account, err := h.service.GetAccount(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get bank account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateBankAccountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateAccount(r.Context(), scope.CompanyID, req)
	if err != nil {
		httpx.Fail(w, h.logger, "create bank account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
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
	var req ImportRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Import(r.Context(), scope.CompanyID, id, req)
	if err != nil {
		httpx.Fail(w, h.logger, "import bank transactions", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": items})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := TransactionFilter{Status: TxStatus(r.URL.Query().Get("status"))}
	if filter.BankAccountID, err = httpx.QueryInt64(r, "bank_account_id"); err != nil {
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
	for name, dst := range map[string]**shared.Date{"from": &filter.From, "to": &filter.To} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		d, err := shared.ParseDate(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		*dst = &d
	}
	items, page, err := h.service.ListTransactions(r.Context(), scope.CompanyID, filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list bank transactions", err)
		return
	}
	if items == nil {
		items = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateStatusRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tx, err := h.service.UpdateStatus(r.Context(), scope.CompanyID, id, req.Status)
	if err != nil {
		httpx.Fail(w, h.logger, "update bank transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) ShowTransaction(w http.ResponseWriter, r *http.Request) {
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
	tx, err := h.service.GetTransaction(r.Context(), scope.CompanyID, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get bank transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}
