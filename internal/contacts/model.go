package contacts

import (
	"time"
)

// Type classifies a contact as customer, vendor, or both.
type Type string

const (
	TypeCustomer Type = "customer"
	TypeVendor   Type = "vendor"
	TypeBoth     Type = "both"
)

// Valid reports whether t is a known contact type.
func (t Type) Valid() bool {
	return t == TypeCustomer || t == TypeVendor || t == TypeBoth
}

// IsCustomer reports whether invoices may be issued to the contact.
func (t Type) IsCustomer() bool { return t == TypeCustomer || t == TypeBoth }

// IsVendor reports whether bills may be received from the contact.
func (t Type) IsVendor() bool { return t == TypeVendor || t == TypeBoth }

// Contact is a customer or vendor of the company.
type Contact struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	Type        Type      `json:"contact_type"`
	DisplayName string    `json:"display_name"`
	LegalName   *string   `json:"legal_name,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Address     *string   `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is the slice of a contact embedded in documents.
type Summary struct {
	ID          int64   `json:"id"`
	Type        Type    `json:"contact_type"`
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email,omitempty"`
}

type CreateContactRequest struct {
	Type        Type    `json:"contact_type" validate:"required,oneof=customer vendor both"`
	DisplayName string  `json:"display_name" validate:"required,max=200"`
	LegalName   *string `json:"legal_name,omitempty" validate:"omitempty,max=200"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

type UpdateContactRequest struct {
	Type        *Type   `json:"contact_type,omitempty" validate:"omitempty,oneof=customer vendor both"`
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,min=1,max=200"`
	LegalName   *string `json:"legal_name,omitempty" validate:"omitempty,max=200"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

type ListContactsRequest struct {
	CompanyID int64
	Type      Type
	Search    string
	Limit     int
	Offset    int
}
