package reconciliation

import (
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Session reconciles one bank statement period of a bank account.
type Session struct {
	ID                     int64         `json:"id"`
	CompanyID              int64         `json:"company_id"`
	BankAccountID          int64         `json:"bank_account_id"`
	StatementStart         shared.Date   `json:"statement_start"`
	StatementEnd           shared.Date   `json:"statement_end"`
	StatementEndingBalance shared.Amount `json:"statement_ending_balance"`
	OpeningBalance         shared.Amount `json:"opening_balance"`
	Status                 Status        `json:"status"`
	CompletedAt            *time.Time    `json:"completed_at,omitempty"`
	CompletedBy            *string       `json:"completed_by,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
}

// Item records whether a bank transaction is cleared in a session.
type Item struct {
	SessionID         int64     `json:"session_id"`
	BankTransactionID int64     `json:"bank_transaction_id"`
	Cleared           bool      `json:"cleared"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Summary compares the cleared activity with the statement.
type Summary struct {
	SessionID              int64         `json:"session_id"`
	OpeningBalance         shared.Amount `json:"opening_balance"`
	ClearedTotal           shared.Amount `json:"cleared_total"`
	ClearedCount           int           `json:"cleared_count"`
	StatementEndingBalance shared.Amount `json:"statement_ending_balance"`
	Difference             shared.Amount `json:"difference"`
	Balanced               bool          `json:"balanced"`
}

// Summarize applies the completion rule: opening balance plus cleared amounts
// must equal the statement ending balance.
func Summarize(session Session, cleared []shared.Amount) Summary {
	s := Summary{
		SessionID:              session.ID,
		OpeningBalance:         session.OpeningBalance,
		StatementEndingBalance: session.StatementEndingBalance,
		ClearedCount:           len(cleared),
	}
	for _, amount := range cleared {
		s.ClearedTotal += amount
	}
	s.Difference = session.StatementEndingBalance - (session.OpeningBalance + s.ClearedTotal)
	s.Balanced = s.Difference == 0
	return s
}

type StartSessionRequest struct {
	BankAccountID          int64         `json:"bank_account_id" validate:"required,gt=0"`
	StatementStart         shared.Date   `json:"statement_start" validate:"required"`
	StatementEnd           shared.Date   `json:"statement_end" validate:"required"`
	StatementEndingBalance shared.Amount `json:"statement_ending_balance"`
}

type ClearItemRequest struct {
	BankTransactionID int64 `json:"bank_transaction_id" validate:"required,gt=0"`
	Cleared           bool  `json:"cleared"`
}
