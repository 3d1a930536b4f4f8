package payments

import (
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Status enumerates payment lifecycle states.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusApplied Status = "applied"
	StatusVoid    Status = "void"
)

// Payment is money received from a customer (kind invoice) or paid to a
// vendor (kind bill).
type Payment struct {
	ID                  int64          `json:"id"`
	CompanyID           int64          `json:"company_id"`
	Kind                documents.Kind `json:"kind"`
	ContactID           *int64         `json:"contact_id,omitempty"`
	PaymentDate         shared.Date    `json:"payment_date"`
	Amount              shared.Amount  `json:"amount"`
	AmountApplied       shared.Amount  `json:"amount_applied"`
	SettlementAccountID *int64         `json:"settlement_account_id,omitempty"`
	Memo                string         `json:"memo"`
	Status              Status         `json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	Applications        []Application  `json:"applications,omitempty"`
}

// Unapplied is the part of the payment not yet matched to documents.
func (p Payment) Unapplied() shared.Amount {
	return p.Amount - p.AmountApplied
}

// Application links part of a payment to one invoice or bill.
type Application struct {
	ID             int64         `json:"id"`
	PaymentID      int64         `json:"payment_id"`
	DocumentID     int64         `json:"document_id"`
	AmountApplied  shared.Amount `json:"amount_applied"`
	JournalEntryID *int64        `json:"journal_entry_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// RecordPaymentRequest creates a draft payment. The kind comes from the route.
type RecordPaymentRequest struct {
	Kind                documents.Kind `json:"-"`
	ContactID           *int64         `json:"contact_id,omitempty" validate:"omitempty,gt=0"`
	PaymentDate         shared.Date    `json:"payment_date" validate:"required"`
	Amount              shared.Amount  `json:"amount"`
	SettlementAccountID *int64         `json:"settlement_account_id,omitempty" validate:"omitempty,gt=0"`
	Memo                string         `json:"memo" validate:"max=1000"`
}

type ApplyRequest struct {
	DocumentID    int64         `json:"document_id" validate:"required,gt=0"`
	AmountApplied shared.Amount `json:"amount_applied"`
}

type ListFilter struct {
	Kind      documents.Kind
	Status    Status
	ContactID int64
	Page      int
	PerPage   int
}
