package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs bank reconciliation sessions.
type Service struct {
	repo    Repository
	audit   AuditPort
	metrics shared.OperationRecorder
	now     func() time.Time
}

func NewService(repo Repository, audit AuditPort, metrics shared.OperationRecorder) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// StartSession opens a session for a statement period. The opening balance is
// the ending balance of the last completed session of the bank account.
func (s *Service) StartSession(ctx context.Context, companyID int64, req StartSessionRequest) (Session, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Session{}, err
	}
	if req.StatementStart.IsZero() || req.StatementEnd.IsZero() {
		return Session{}, fmt.Errorf("%w: statement period required", shared.ErrValidation)
	}
	if req.StatementEnd.Before(req.StatementStart) {
		return Session{}, fmt.Errorf("%w: statement_end before statement_start", shared.ErrValidation)
	}
	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockBankAccount(ctx, companyID, req.BankAccountID); err != nil {
			return err
		}
		open, err := tx.HasOpenSession(ctx, companyID, req.BankAccountID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: bank account %d already has a session in progress", shared.ErrConflict, req.BankAccountID)
		}
		opening, _, err := tx.PreviousEnding(ctx, companyID, req.BankAccountID)
		if err != nil {
			return err
		}
		session, err = tx.Insert(ctx, Session{
			CompanyID:              companyID,
			BankAccountID:          req.BankAccountID,
			StatementStart:         req.StatementStart,
			StatementEnd:           req.StatementEnd,
			StatementEndingBalance: req.StatementEndingBalance,
			OpeningBalance:         opening,
			Status:                 StatusInProgress,
		})
		return err
	})
	if err != nil {
		return Session{}, fmt.Errorf("start reconciliation: %w", err)
	}
	return session, nil
}

// ClearItem marks a bank transaction cleared or not within an open session.
// Repeating the call is idempotent; the last write wins.
func (s *Service) ClearItem(ctx context.Context, companyID, sessionID int64, req ClearItemRequest) (Item, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Item{}, err
	}
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		session, err := tx.GetForUpdate(ctx, companyID, sessionID)
		if err != nil {
			return err
		}
		if session.Status != StatusInProgress {
			return fmt.Errorf("%w: session %d is %s", shared.ErrInvalidStatus, session.ID, session.Status)
		}
		txn, err := tx.LockTransaction(ctx, companyID, req.BankTransactionID)
		if err != nil {
			return err
		}
		if txn.BankAccountID != session.BankAccountID {
			return fmt.Errorf("%w: transaction %d belongs to another bank account", shared.ErrValidation, txn.ID)
		}
		if txn.ReconciledSessionID != nil && *txn.ReconciledSessionID != session.ID {
			return fmt.Errorf("%w: transaction %d was reconciled in session %d", shared.ErrConflict, txn.ID, *txn.ReconciledSessionID)
		}
		item, err = tx.UpsertItem(ctx, Item{SessionID: session.ID, BankTransactionID: txn.ID, Cleared: req.Cleared})
		return err
	})
	if err != nil {
		return Item{}, fmt.Errorf("clear item: %w", err)
	}
	return item, nil
}

// Complete closes the session once opening plus cleared equals the statement
// ending balance. Cleared transactions are stamped with the session.
func (s *Service) Complete(ctx context.Context, companyID, sessionID int64, actor string) (Session, Summary, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Session{}, Summary{}, err
	}
	var (
		session Session
		summary Summary
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, sessionID)
		if err != nil {
			return err
		}
		if current.Status != StatusInProgress {
			return fmt.Errorf("%w: session %d is %s", shared.ErrInvalidStatus, current.ID, current.Status)
		}
		cleared, err := tx.ClearedTransactions(ctx, current.ID)
		if err != nil {
			return err
		}
		amounts := make([]shared.Amount, 0, len(cleared))
		ids := make([]int64, 0, len(cleared))
		for _, txn := range cleared {
			if txn.ReconciledSessionID != nil && *txn.ReconciledSessionID != current.ID {
				return fmt.Errorf("%w: transaction %d was reconciled in session %d", shared.ErrConflict, txn.ID, *txn.ReconciledSessionID)
			}
			amounts = append(amounts, txn.Amount)
			ids = append(ids, txn.ID)
		}
		summary = Summarize(current, amounts)
		if !summary.Balanced {
			return fmt.Errorf("%w: cleared activity is off the statement by %s", shared.ErrConflict, summary.Difference)
		}
		if err := tx.StampReconciled(ctx, current.ID, ids); err != nil {
			return err
		}
		completedAt := s.now()
		current.Status = StatusCompleted
		current.CompletedAt = &completedAt
		current.CompletedBy = &actor
		session, err = tx.MarkCompleted(ctx, current)
		return err
	})
	shared.Observe(s.metrics, "reconciliation.complete", err)
	if err != nil {
		return Session{}, Summary{}, fmt.Errorf("complete reconciliation: %w", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: companyID,
			Actor:     actor,
			Action:    "reconciliation.complete",
			Entity:    "reconciliation_session",
			EntityID:  fmt.Sprintf("%d", session.ID),
			Meta: map[string]any{
				"bank_account_id": session.BankAccountID,
				"statement_end":   session.StatementEnd.String(),
				"cleared_count":   summary.ClearedCount,
				"ending_balance":  session.StatementEndingBalance.String(),
			},
			At: s.now(),
		})
	}
	return session, summary, nil
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Session, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Session{}, err
	}
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID, bankAccountID int64) ([]Session, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, companyID, bankAccountID)
}

// Items returns the clearing records of a session.
func (s *Service) Items(ctx context.Context, companyID, sessionID int64) ([]Item, error) {
	if _, err := s.Get(ctx, companyID, sessionID); err != nil {
		return nil, err
	}
	return s.repo.Items(ctx, sessionID)
}

// Summary reports how far the cleared activity is from the statement.
func (s *Service) Summary(ctx context.Context, companyID, sessionID int64) (Summary, error) {
	session, err := s.Get(ctx, companyID, sessionID)
	if err != nil {
		return Summary{}, err
	}
	amounts, err := s.repo.ClearedAmounts(ctx, session.ID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(session, amounts), nil
}
