package contacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, companyID int64, req CreateContactRequest) (Contact, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Contact{}, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return Contact{}, fmt.Errorf("%w: display_name required", shared.ErrValidation)
	}
	if !req.Type.Valid() {
		return Contact{}, fmt.Errorf("%w: unknown contact type %q", shared.ErrValidation, req.Type)
	}
	return s.repo.Create(ctx, Contact{
		CompanyID:   companyID,
		Type:        req.Type,
		DisplayName: name,
		LegalName:   trimmed(req.LegalName),
		Email:       trimmed(req.Email),
		Phone:       trimmed(req.Phone),
		Address:     trimmed(req.Address),
	})
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Contact, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Contact{}, err
	}
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, req ListContactsRequest) ([]Contact, shared.Pagination, error) {
	if err := shared.RequireCompany(req.CompanyID); err != nil {
		return nil, shared.Pagination{}, err
	}
	if req.Type != "" && !req.Type.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown contact type %q", shared.ErrValidation, req.Type)
	}
	_, req.Limit = shared.NormalizePage(1, req.Limit)
	if req.Offset < 0 {
		req.Offset = 0
	}
	items, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(req.Offset/req.Limit+1, req.Limit, total), nil
}

func (s *Service) Update(ctx context.Context, companyID, id int64, req UpdateContactRequest) (Contact, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Contact{}, err
	}
	var updated Contact
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.Get(ctx, companyID, id)
		if err != nil {
			return err
		}
		if req.Type != nil {
			if !req.Type.Valid() {
				return fmt.Errorf("%w: unknown contact type %q", shared.ErrValidation, *req.Type)
			}
			current.Type = *req.Type
		}
		if req.DisplayName != nil {
			name := strings.TrimSpace(*req.DisplayName)
			if name == "" {
				return fmt.Errorf("%w: display_name cannot be blank", shared.ErrValidation)
			}
			current.DisplayName = name
		}
		if req.LegalName != nil {
			current.LegalName = trimmed(req.LegalName)
		}
		if req.Email != nil {
			current.Email = trimmed(req.Email)
		}
		if req.Phone != nil {
			current.Phone = trimmed(req.Phone)
		}
		if req.Address != nil {
			current.Address = trimmed(req.Address)
		}
		updated, err = repo.Update(ctx, current)
		return err
	})
	if err != nil {
		return Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return updated, nil
}

// Delete removes a contact no document or payment refers to.
func (s *Service) Delete(ctx context.Context, companyID, id int64) error {
	if err := shared.RequireCompany(companyID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.Get(ctx, companyID, id); err != nil {
			return err
		}
		used, err := repo.HasReferences(ctx, companyID, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: contact has documents or payments", shared.ErrHasTransactions)
		}
		return repo.Delete(ctx, companyID, id)
	})
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
