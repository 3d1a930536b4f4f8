package journals

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Status enumerates journal lifecycle values.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
	StatusVoid   Status = "void"
)

// Source values identify what produced an entry.
const (
	SourceManual  = "manual"
	SourceInvoice = "invoice"
	SourceBill    = "bill"
	SourcePayment = "payment"
)

// Entry captures a journal entry header and its ordered lines.
type Entry struct {
	ID          int64         `json:"id"`
	CompanyID   int64         `json:"company_id"`
	Number      string        `json:"entry_number"`
	Date        shared.Date   `json:"entry_date"`
	Memo        string        `json:"memo"`
	Status      Status        `json:"status"`
	Source      string        `json:"source"`
	TotalDebit  shared.Amount `json:"total_debit"`
	TotalCredit shared.Amount `json:"total_credit"`
	CreatedBy   string        `json:"created_by"`
	PostedAt    *time.Time    `json:"posted_at,omitempty"`
	VoidedAt    *time.Time    `json:"voided_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Lines       []Line        `json:"lines,omitempty"`
}

// Line stores a debit or credit against one account.
type Line struct {
	ID        int64         `json:"id"`
	JournalID int64         `json:"journal_id"`
	LineNo    int           `json:"line_no"`
	AccountID int64         `json:"account_id"`
	Debit     shared.Amount `json:"debit"`
	Credit    shared.Amount `json:"credit"`
	Memo      string        `json:"memo,omitempty"`
}

// LineInput describes one requested line.
type LineInput struct {
	AccountID int64         `json:"account_id" validate:"required,gt=0"`
	Debit     shared.Amount `json:"debit"`
	Credit    shared.Amount `json:"credit"`
	Memo      string        `json:"memo,omitempty" validate:"max=500"`
}

// EntryInput carries the fields of a new or edited entry.
type EntryInput struct {
	Date   shared.Date `json:"entry_date" validate:"required"`
	Memo   string      `json:"memo" validate:"max=1000"`
	Source string      `json:"-"`
	Lines  []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Status  Status
	From    *shared.Date
	To      *shared.Date
	Page    int
	PerPage int
}

// checkLineShapes enforces exactly one nonzero non-negative side per line
// and returns the debit and credit totals.
func checkLineShapes(lines []LineInput) (shared.Amount, shared.Amount, error) {
	var debit, credit shared.Amount
	for idx, line := range lines {
		if line.Debit < 0 || line.Credit < 0 {
			return 0, 0, fmt.Errorf("%w: line %d has a negative amount", shared.ErrInvalidLine, idx+1)
		}
		if (line.Debit == 0) == (line.Credit == 0) {
			return 0, 0, fmt.Errorf("%w: line %d must carry exactly one of debit or credit", shared.ErrInvalidLine, idx+1)
		}
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit, nil
}

func lineAccountIDs(lines []LineInput) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	return ids
}

func inputsFromLines(lines []Line) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo})
	}
	return out
}
