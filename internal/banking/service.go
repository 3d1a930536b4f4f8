package banking

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Service manages bank accounts and their imported activity.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateAccount links a bank account to an active asset account of the company.
func (s *Service) CreateAccount(ctx context.Context, companyID int64, req CreateBankAccountRequest) (BankAccount, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return BankAccount{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return BankAccount{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	var out BankAccount
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		target, ok, err := repo.LinkedAccount(ctx, companyID, req.LinkedAccountID)
		if err != nil {
			return err
		}
		if !ok || target.IsArchived {
			return fmt.Errorf("%w: linked account %d", shared.ErrValidation, req.LinkedAccountID)
		}
		if target.Type != accounts.AccountTypeAsset {
			return fmt.Errorf("%w: linked account must be an asset, got %s", shared.ErrValidation, target.Type)
		}
		out, err = repo.CreateAccount(ctx, BankAccount{
			CompanyID:       companyID,
			Name:            name,
			Institution:     req.Institution,
			Mask:            req.Mask,
			LinkedAccountID: req.LinkedAccountID,
		})
		return err
	})
	if err != nil {
		return BankAccount{}, fmt.Errorf("create bank account: %w", err)
	}
	return out, nil
}

func (s *Service) GetAccount(ctx context.Context, companyID, id int64) (BankAccount, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return BankAccount{}, err
	}
	return s.repo.GetAccount(ctx, companyID, id)
}

func (s *Service) ListAccounts(ctx context.Context, companyID int64) ([]BankAccount, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, err
	}
	return s.repo.ListAccounts(ctx, companyID)
}

// Import stores a batch of bank activity as unreviewed transactions. The batch
// is all or nothing.
func (s *Service) Import(ctx context.Context, companyID, bankAccountID int64, req ImportRequest) ([]Transaction, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, err
	}
	if len(req.Transactions) == 0 {
		return nil, fmt.Errorf("%w: no transactions", shared.ErrValidation)
	}
	for idx, in := range req.Transactions {
		if in.PostedDate.IsZero() || strings.TrimSpace(in.Name) == "" {
			return nil, fmt.Errorf("%w: transaction %d needs posted_date and name", shared.ErrValidation, idx+1)
		}
	}
	out := make([]Transaction, 0, len(req.Transactions))
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetAccount(ctx, companyID, bankAccountID); err != nil {
			return err
		}
		for _, in := range req.Transactions {
			t, err := repo.InsertTransaction(ctx, Transaction{
				CompanyID:     companyID,
				BankAccountID: bankAccountID,
				PostedDate:    in.PostedDate,
				Name:          strings.TrimSpace(in.Name),
				Amount:        in.Amount,
				Status:        TxUnreviewed,
			})
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import bank transactions: %w", err)
	}
	return out, nil
}

func (s *Service) ListTransactions(ctx context.Context, companyID int64, filter TransactionFilter) ([]Transaction, shared.Pagination, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, shared.Pagination{}, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	items, total, err := s.repo.ListTransactions(ctx, companyID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// UpdateStatus sets the review status of a transaction.
func (s *Service) UpdateStatus(ctx context.Context, companyID, id int64, status TxStatus) (Transaction, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Transaction{}, err
	}
	if !status.Valid() {
		return Transaction{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	return s.repo.SetStatus(ctx, companyID, id, status)
}

func (s *Service) GetTransaction(ctx context.Context, companyID, id int64) (Transaction, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Transaction{}, err
	}
	return s.repo.GetTransaction(ctx, companyID, id)
}
