package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const maxParentDepth = 32

// Service maintains the chart of accounts. Balances are read-only here; only
// the journal engine moves them.
type Service struct {
	repo Repository
}

// NewService constructs the account registry service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create adds an account, rejecting duplicate codes within the company.
func (s *Service) Create(ctx context.Context, companyID int64, req CreateAccountRequest) (Account, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Account{}, err
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if err := req.Validate(); err != nil {
		return Account{}, err
	}
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.CodeExists(ctx, companyID, req.Code, 0)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: account code %s", shared.ErrDuplicateCode, req.Code)
		}
		if req.ParentID != nil {
			parent, err := tx.GetForUpdate(ctx, companyID, *req.ParentID)
			if err != nil {
				return fmt.Errorf("parent: %w", err)
			}
			if parent.Type != req.Type {
				return fmt.Errorf("%w: parent account must share type %s", shared.ErrValidation, req.Type)
			}
		}
		created, err = tx.Insert(ctx, Account{
			CompanyID: companyID,
			Code:      req.Code,
			Name:      req.Name,
			Type:      req.Type,
			Subtype:   req.Subtype,
			ParentID:  req.ParentID,
		})
		return err
	})
	if err != nil {
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

// Get returns a single account within the company.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Account, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Account{}, err
	}
	return s.repo.Get(ctx, companyID, id)
}

// List returns the company's accounts ordered by code.
func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Account, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, err
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, filter.Type)
	}
	return s.repo.List(ctx, companyID, filter)
}

// Update changes mutable fields. Changing the type of an account that already
// carries journal lines is rejected.
func (s *Service) Update(ctx context.Context, companyID, id int64, req UpdateAccountRequest) (Account, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Account{}, err
	}
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		next := current
		if req.Code != nil {
			code := strings.TrimSpace(*req.Code)
			if code == "" {
				return fmt.Errorf("%w: code cannot be blank", shared.ErrValidation)
			}
			if code != current.Code {
				exists, err := tx.CodeExists(ctx, companyID, code, id)
				if err != nil {
					return err
				}
				if exists {
					return fmt.Errorf("%w: account code %s", shared.ErrDuplicateCode, code)
				}
			}
			next.Code = code
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return fmt.Errorf("%w: name cannot be blank", shared.ErrValidation)
			}
			next.Name = name
		}
		if req.Type != nil && *req.Type != current.Type {
			if !req.Type.Valid() {
				return fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, *req.Type)
			}
			used, err := tx.HasJournalLines(ctx, id)
			if err != nil {
				return err
			}
			if used {
				return fmt.Errorf("%w: cannot change type of an account with journal lines", shared.ErrHasTransactions)
			}
			next.Type = *req.Type
		}
		if req.Subtype != nil {
			next.Subtype = req.Subtype
			if strings.TrimSpace(*req.Subtype) == "" {
				next.Subtype = nil
			}
		}
		if req.IsArchived != nil {
			next.IsArchived = *req.IsArchived
		}
		if req.ParentID != nil {
			if *req.ParentID == 0 {
				next.ParentID = nil
			} else {
				if err := s.checkParent(ctx, tx, companyID, id, *req.ParentID, next.Type); err != nil {
					return err
				}
				parentID := *req.ParentID
				next.ParentID = &parentID
			}
		}
		updated, err = tx.Update(ctx, next)
		return err
	})
	if err != nil {
		return Account{}, fmt.Errorf("update account: %w", err)
	}
	return updated, nil
}

func (s *Service) checkParent(ctx context.Context, tx TxRepository, companyID, id, parentID int64, typ AccountType) error {
	cursor := parentID
	for depth := 0; depth < maxParentDepth; depth++ {
		if cursor == id {
			return fmt.Errorf("%w: parent would create a cycle", shared.ErrValidation)
		}
		parent, err := tx.GetForUpdate(ctx, companyID, cursor)
		if err != nil {
			return fmt.Errorf("parent: %w", err)
		}
		if depth == 0 && parent.Type != typ {
			return fmt.Errorf("%w: parent account must share type %s", shared.ErrValidation, typ)
		}
		if parent.ParentID == nil {
			return nil
		}
		cursor = *parent.ParentID
	}
	return fmt.Errorf("%w: account hierarchy too deep", shared.ErrValidation)
}

// Delete removes an account that has never been referenced by a journal line.
func (s *Service) Delete(ctx context.Context, companyID, id int64) error {
	if err := shared.RequireCompany(companyID); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, companyID, id); err != nil {
			return err
		}
		used, err := tx.HasJournalLines(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: cannot delete account with existing transactions", shared.ErrHasTransactions)
		}
		return tx.Delete(ctx, companyID, id)
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
