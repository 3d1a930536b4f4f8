package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached report figures for a company.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, companyID int64)
}

type Service struct {
	repo    Repository
	audit   AuditPort
	cache   CacheInvalidator
	metrics shared.OperationRecorder
	now     func() time.Time
}

func NewService(repo Repository, audit AuditPort, cache CacheInvalidator, metrics shared.OperationRecorder) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, metrics: metrics, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create registers a period. Overlapping windows within a company are rejected.
func (s *Service) Create(ctx context.Context, companyID int64, req CreatePeriodRequest) (Period, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Period{}, err
	}
	p, err := req.normalize()
	if err != nil {
		return Period{}, err
	}
	p.CompanyID = companyID
	var created Period
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockCompany(ctx, companyID); err != nil {
			return err
		}
		overlaps, err := tx.Overlaps(ctx, companyID, p.StartDate, p.EndDate)
		if err != nil {
			return err
		}
		if overlaps {
			return fmt.Errorf("%w: period %s..%s overlaps an existing period", shared.ErrConflict, p.StartDate, p.EndDate)
		}
		created, err = tx.Insert(ctx, p)
		return err
	})
	if err != nil {
		return Period{}, fmt.Errorf("create period: %w", err)
	}
	return created, nil
}

// Close freezes every entry dated on or before the period's lock date.
func (s *Service) Close(ctx context.Context, companyID, id int64, actor string) (Period, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Period{}, err
	}
	var closed Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.IsClosed {
			return fmt.Errorf("%w: period already closed", shared.ErrInvalidStatus)
		}
		closed, err = tx.MarkClosed(ctx, companyID, id, actor, s.now())
		return err
	})
	shared.Observe(s.metrics, "period.close", err)
	if err != nil {
		return Period{}, fmt.Errorf("close period: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, companyID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: companyID,
			Actor:     actor,
			Action:    "period.close",
			Entity:    "accounting_period",
			EntityID:  fmt.Sprintf("%d", closed.ID),
			Meta:      map[string]any{"lock_date": closed.LockDate.String()},
			At:        s.now(),
		})
	}
	return closed, nil
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Period, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Period{}, err
	}
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID int64) ([]Period, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, companyID)
}

// IsLocked reports whether any closed period of the company has a lock date
// on or after date.
func (s *Service) IsLocked(ctx context.Context, companyID int64, date shared.Date) (bool, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return false, err
	}
	return s.repo.IsLocked(ctx, companyID, date)
}
