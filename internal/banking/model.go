package banking

import (
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// BankAccount is a real-world account whose activity is reconciled against
// its linked asset ledger account.
type BankAccount struct {
	ID              int64     `json:"id"`
	CompanyID       int64     `json:"company_id"`
	Name            string    `json:"name"`
	Institution     *string   `json:"institution,omitempty"`
	Mask            *string   `json:"mask,omitempty"`
	LinkedAccountID int64     `json:"linked_account_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// TxStatus is the review state of an imported bank transaction.
type TxStatus string

const (
	TxUnreviewed TxStatus = "unreviewed"
	TxReviewed   TxStatus = "reviewed"
	TxMatched    TxStatus = "matched"
	TxExcluded   TxStatus = "excluded"
)

func (s TxStatus) Valid() bool {
	switch s {
	case TxUnreviewed, TxReviewed, TxMatched, TxExcluded:
		return true
	}
	return false
}

// Transaction is one line of bank activity. Positive amounts are deposits.
type Transaction struct {
	ID                  int64         `json:"id"`
	CompanyID           int64         `json:"company_id"`
	BankAccountID       int64         `json:"bank_account_id"`
	PostedDate          shared.Date   `json:"posted_date"`
	Name                string        `json:"name"`
	Amount              shared.Amount `json:"amount"`
	Status              TxStatus      `json:"status"`
	ReconciledSessionID *int64        `json:"reconciled_session_id,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
}

type CreateBankAccountRequest struct {
	Name            string  `json:"name" validate:"required,max=200"`
	Institution     *string `json:"institution,omitempty" validate:"omitempty,max=200"`
	Mask            *string `json:"mask,omitempty" validate:"omitempty,max=8"`
	LinkedAccountID int64   `json:"linked_account_id" validate:"required,gt=0"`
}

type TransactionInput struct {
	PostedDate shared.Date   `json:"posted_date" validate:"required"`
	Name       string        `json:"name" validate:"required,max=300"`
	Amount     shared.Amount `json:"amount"`
}

type ImportRequest struct {
	Transactions []TransactionInput `json:"transactions" validate:"required,min=1,max=1000,dive"`
}

type UpdateStatusRequest struct {
	Status TxStatus `json:"status" validate:"required,oneof=unreviewed reviewed matched excluded"`
}

type TransactionFilter struct {
	BankAccountID int64
	Status        TxStatus
	From          *shared.Date
	To            *shared.Date
	Page          int
	PerPage       int
}
