// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type problemMapping struct {
	target error
	status int
	code   string
	title  string
}

var problemMappings = []problemMapping{
	{shared.ErrNotFound, http.StatusNotFound, "not_found", "Not Found"},
	{shared.ErrDuplicateCode, http.StatusConflict, "duplicate_code", "Duplicate Code"},
	{shared.ErrConcurrentModification, http.StatusConflict, "concurrent_modification", "Concurrent Modification"},
	{shared.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict", "Request Already Processed"},
	{shared.ErrConflict, http.StatusConflict, "conflict", "Conflict"},
	{shared.ErrInvalidLine, http.StatusUnprocessableEntity, "invalid_line", "Invalid Line"},
	{shared.ErrUnbalancedEntry, http.StatusUnprocessableEntity, "unbalanced_entry", "Unbalanced Entry"},
	{shared.ErrPeriodLocked, http.StatusUnprocessableEntity, "period_locked", "Period Locked"},
	{shared.ErrOverApplication, http.StatusUnprocessableEntity, "over_application", "Over Application"},
	{shared.ErrHasTransactions, http.StatusUnprocessableEntity, "has_transactions", "Has Transactions"},
	{shared.ErrInvalidStatus, http.StatusUnprocessableEntity, "invalid_status", "Invalid Status"},
	{shared.ErrValidation, http.StatusBadRequest, "validation", "Validation Failed"},
	{shared.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Unauthorized"},
}

// StatusFor returns the HTTP status and problem code for err.
func StatusFor(err error) (int, string, string) {
	for _, m := range problemMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, m.title
		}
	}
	return http.StatusInternalServerError, "internal", "Internal Error"
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status, code, title := StatusFor(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, code, title, "")
		return
	}
	if shared.IsRetryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	Problem(w, status, code, title, err.Error())
}

// Fail logs unexpected failures under op and writes the problem response.
// Domain rejections are not logged.
func Fail(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	if status, _, _ := StatusFor(err); status >= http.StatusInternalServerError && logger != nil {
		logger.Error(op, slog.Any("error", err))
	}
	RespondError(w, err)
}
