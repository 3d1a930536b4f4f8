package shared

import "errors"

var (
	// ErrNotFound indicates the resource is absent or outside the caller's company.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCode indicates a code or number already exists within the company.
	ErrDuplicateCode = errors.New("duplicate code")
	// ErrInvalidLine indicates a malformed journal or document line.
	ErrInvalidLine = errors.New("invalid line")
	// ErrUnbalancedEntry indicates debits and credits differ.
	ErrUnbalancedEntry = errors.New("unbalanced entry")
	// ErrPeriodLocked indicates the date falls inside a closed period's lock range.
	ErrPeriodLocked = errors.New("period locked")
	// ErrOverApplication indicates an application exceeds the remaining balance.
	ErrOverApplication = errors.New("over application")
	// ErrHasTransactions indicates the entity is still referenced by ledger activity.
	ErrHasTransactions = errors.New("has transactions")
	// ErrConcurrentModification indicates a lock or serialization conflict. Retryable.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStatus indicates the requested transition is not allowed.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrConflict indicates the request conflicts with existing state.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// IsRetryable reports whether the caller may retry the failed operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
