package periods

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Period represents a fiscal window. Once closed, entries dated on or before
// LockDate are frozen.
type Period struct {
	ID        int64       `json:"id"`
	CompanyID int64       `json:"company_id"`
	StartDate shared.Date `json:"start_date"`
	EndDate   shared.Date `json:"end_date"`
	LockDate  shared.Date `json:"lock_date"`
	IsClosed  bool        `json:"is_closed"`
	ClosedAt  *time.Time  `json:"closed_at,omitempty"`
	ClosedBy  *string     `json:"closed_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreatePeriodRequest carries the period window. LockDate defaults to EndDate.
type CreatePeriodRequest struct {
	StartDate shared.Date  `json:"start_date" validate:"required"`
	EndDate   shared.Date  `json:"end_date" validate:"required"`
	LockDate  *shared.Date `json:"lock_date,omitempty"`
}

func (req CreatePeriodRequest) normalize() (Period, error) {
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return Period{}, fmt.Errorf("%w: start_date and end_date required", shared.ErrValidation)
	}
	if req.EndDate.Before(req.StartDate) {
		return Period{}, fmt.Errorf("%w: end_date before start_date", shared.ErrValidation)
	}
	p := Period{StartDate: req.StartDate, EndDate: req.EndDate, LockDate: req.EndDate}
	if req.LockDate != nil && !req.LockDate.IsZero() {
		if req.LockDate.Before(req.StartDate) {
			return Period{}, fmt.Errorf("%w: lock_date before start_date", shared.ErrValidation)
		}
		p.LockDate = *req.LockDate
	}
	return p, nil
}
