package accounts

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether debits increase the account's balance.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// BalanceDelta returns the signed change one posted line makes to an account
// of this type: debit-normal accounts grow with debits, the rest with credits.
func (t AccountType) BalanceDelta(debit, credit shared.Amount) shared.Amount {
	if t.DebitNormal() {
		return debit - credit
	}
	return credit - debit
}

// Common subtypes used by reports.
const (
	SubtypeCash = "cash"
	SubtypeBank = "bank"
)

// Account models a chart of accounts node with its running balance.
type Account struct {
	ID             int64         `json:"id"`
	CompanyID      int64         `json:"company_id"`
	Code           string        `json:"code"`
	Name           string        `json:"name"`
	Type           AccountType   `json:"type"`
	Subtype        *string       `json:"subtype,omitempty"`
	ParentID       *int64        `json:"parent_id,omitempty"`
	CurrentBalance shared.Amount `json:"current_balance"`
	IsArchived     bool          `json:"is_archived"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CreateAccountRequest carries the fields accepted when creating an account.
type CreateAccountRequest struct {
	Code     string      `json:"code" validate:"required,max=20"`
	Name     string      `json:"name" validate:"required,max=200"`
	Type     AccountType `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	Subtype  *string     `json:"subtype,omitempty" validate:"omitempty,max=50"`
	ParentID *int64      `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
}

// Validate applies the rules not expressible as tags.
func (req CreateAccountRequest) Validate() error {
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, req.Type)
	}
	if req.Code == "" || req.Name == "" {
		return fmt.Errorf("%w: code and name required", shared.ErrValidation)
	}
	return nil
}

// UpdateAccountRequest carries the mutable account fields. Nil means unchanged.
type UpdateAccountRequest struct {
	Code       *string      `json:"code,omitempty" validate:"omitempty,min=1,max=20"`
	Name       *string      `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Type       *AccountType `json:"type,omitempty" validate:"omitempty,oneof=asset liability equity revenue expense"`
	Subtype    *string      `json:"subtype,omitempty" validate:"omitempty,max=50"`
	ParentID   *int64       `json:"parent_id,omitempty" validate:"omitempty,gte=0"`
	IsArchived *bool        `json:"is_archived,omitempty"`
}

// ListFilter narrows account listings.
type ListFilter struct {
	Type            AccountType
	IncludeArchived bool
}
