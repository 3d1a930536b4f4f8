package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/contacts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Kind distinguishes receivable invoices from payable bills.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindBill    Kind = "bill"
)

// Valid reports whether k is a known document kind.
func (k Kind) Valid() bool { return k == KindInvoice || k == KindBill }

// Prefix is the human readable number prefix, e.g. INV-001.
func (k Kind) Prefix() string {
	if k == KindBill {
		return "BILL"
	}
	return "INV"
}

// AcceptsContact reports whether a contact of type t may hold documents of kind k.
func (k Kind) AcceptsContact(t contacts.Type) bool {
	if k == KindBill {
		return t.IsVendor()
	}
	return t.IsCustomer()
}

// Status enumerates the document lifecycle.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPosted  Status = "posted"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusVoid    Status = "void"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPosted, StatusPartial, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// Posted reports whether the document has been recognised in the ledger.
func (s Status) Posted() bool {
	return s == StatusPosted || s == StatusPartial || s == StatusPaid
}

const numberWidth = 3

// Document is an invoice or a bill.
type Document struct {
	ID               int64             `json:"id"`
	CompanyID        int64             `json:"company_id"`
	Kind             Kind              `json:"kind"`
	ContactID        int64             `json:"contact_id"`
	Number           string            `json:"doc_number"`
	IssueDate        shared.Date       `json:"issue_date"`
	DueDate          shared.Date       `json:"due_date"`
	Memo             string            `json:"memo"`
	Subtotal         shared.Amount     `json:"subtotal"`
	TaxTotal         shared.Amount     `json:"tax_total"`
	Total            shared.Amount     `json:"total"`
	AmountPaid       shared.Amount     `json:"amount_paid"`
	BalanceDue       shared.Amount     `json:"balance_due"`
	Status           Status            `json:"status"`
	ControlAccountID *int64            `json:"control_account_id,omitempty"`
	JournalEntryID   *int64            `json:"journal_entry_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Lines            []Line            `json:"lines,omitempty"`
	Contact          *contacts.Summary `json:"contact,omitempty"`
}

// Line is one priced row of a document.
type Line struct {
	ID          int64            `json:"id"`
	DocumentID  int64            `json:"document_id"`
	LineNo      int              `json:"line_no"`
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *shared.Amount   `json:"unit_price,omitempty"`
	Amount      shared.Amount    `json:"amount"`
	AccountID   int64            `json:"account_id"`
}

// ApplyPayment adds amount to amount_paid and recomputes balance_due. The
// document becomes paid once nothing is due; otherwise its status is kept.
func (d *Document) ApplyPayment(amount shared.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount applied must be positive", shared.ErrValidation)
	}
	if amount > d.BalanceDue {
		return fmt.Errorf("%w: %s exceeds balance due %s on %s", shared.ErrOverApplication, amount, d.BalanceDue, d.Number)
	}
	d.AmountPaid += amount
	d.BalanceDue = shared.MaxAmount(0, d.Total-d.AmountPaid)
	if d.BalanceDue == 0 {
		d.Status = StatusPaid
	}
	return nil
}

type LineInput struct {
	Description string           `json:"description" validate:"max=500"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *shared.Amount   `json:"unit_price,omitempty"`
	Amount      *shared.Amount   `json:"amount,omitempty"`
	AccountID   int64            `json:"account_id" validate:"required,gt=0"`
}

// resolve returns the line amount: the explicit amount when given, otherwise
// quantity times unit price.
func (in LineInput) resolve() (shared.Amount, error) {
	if in.Quantity != nil && in.Quantity.IsNegative() {
		return 0, fmt.Errorf("%w: quantity must not be negative", shared.ErrInvalidLine)
	}
	if in.UnitPrice != nil && *in.UnitPrice < 0 {
		return 0, fmt.Errorf("%w: unit price must not be negative", shared.ErrInvalidLine)
	}
	var amount shared.Amount
	switch {
	case in.Amount != nil:
		amount = *in.Amount
	case in.Quantity != nil && in.UnitPrice != nil:
		amount = in.UnitPrice.MulQuantity(*in.Quantity)
	default:
		return 0, fmt.Errorf("%w: line needs an amount or quantity and unit price", shared.ErrInvalidLine)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: amount must not be negative", shared.ErrInvalidLine)
	}
	return amount, nil
}

// CreateDocumentRequest creates a draft invoice or bill. The kind comes from
// the route.
type CreateDocumentRequest struct {
	Kind      Kind          `json:"-"`
	ContactID int64         `json:"contact_id" validate:"required,gt=0"`
	IssueDate shared.Date   `json:"issue_date" validate:"required"`
	DueDate   *shared.Date  `json:"due_date,omitempty"`
	Memo      string        `json:"memo" validate:"max=1000"`
	TaxTotal  shared.Amount `json:"tax_total"`
	Lines     []LineInput   `json:"lines" validate:"required,min=1,dive"`
}

// UpdateStatusRequest carries the only document fields editable after creation.
type UpdateStatusRequest struct {
	Status *Status `json:"status,omitempty"`
	Memo   *string `json:"memo,omitempty" validate:"omitempty,max=1000"`
}

// PostRequest names the receivable or payable control account, plus the tax
// account when the document carries tax.
type PostRequest struct {
	ControlAccountID int64  `json:"control_account_id" validate:"required,gt=0"`
	TaxAccountID     *int64 `json:"tax_account_id,omitempty" validate:"omitempty,gt=0"`
}

type ListFilter struct {
	Kind      Kind
	Status    Status
	ContactID int64
	Page      int
	PerPage   int
}

// buildLines resolves amounts and returns the document lines and subtotal.
func buildLines(inputs []LineInput) ([]Line, shared.Amount, error) {
	lines := make([]Line, 0, len(inputs))
	var subtotal shared.Amount
	for idx, in := range inputs {
		amount, err := in.resolve()
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", idx+1, err)
		}
		subtotal += amount
		lines = append(lines, Line{
			LineNo:      idx + 1,
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      amount,
			AccountID:   in.AccountID,
		})
	}
	return lines, subtotal, nil
}

// statusTransitions lists the manual moves allowed by UpdateStatus. Posting
// and payment application own the remaining transitions.
var statusTransitions = map[Status][]Status{
	StatusDraft:   {StatusSent, StatusPartial, StatusVoid},
	StatusSent:    {StatusDraft, StatusPartial, StatusVoid},
	StatusPosted:  {StatusPartial, StatusVoid},
	StatusPartial: {StatusDraft, StatusSent, StatusVoid},
}

func canMove(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
