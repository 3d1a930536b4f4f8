package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// LedgerPort posts the settlement entry of an application in the payment
// transaction.
type LedgerPort interface {
	PostInTx(ctx context.Context, q db.DBTX, companyID int64, actor string, in journals.EntryInput) (journals.Entry, error)
}

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, companyID int64)
}

// Service records payments and applies them to invoices and bills.
type Service struct {
	repo    Repository
	ledger  LedgerPort
	audit   AuditPort
	cache   CacheInvalidator
	metrics shared.OperationRecorder
	now     func() time.Time
}

func NewService(repo Repository, ledger LedgerPort, audit AuditPort, cache CacheInvalidator, metrics shared.OperationRecorder) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit, cache: cache, metrics: metrics, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordPayment creates a draft payment. No balance moves until it is applied.
func (s *Service) RecordPayment(ctx context.Context, companyID int64, req RecordPaymentRequest) (Payment, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Payment{}, err
	}
	if !req.Kind.Valid() {
		return Payment{}, fmt.Errorf("%w: unknown payment kind %q", shared.ErrValidation, req.Kind)
	}
	if req.Amount <= 0 {
		return Payment{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if req.PaymentDate.IsZero() {
		return Payment{}, fmt.Errorf("%w: payment_date required", shared.ErrValidation)
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if req.ContactID != nil {
			typ, err := tx.ContactType(ctx, companyID, *req.ContactID)
			if err != nil {
				return err
			}
			if !req.Kind.AcceptsContact(typ) {
				return fmt.Errorf("%w: contact %d is a %s", shared.ErrValidation, *req.ContactID, typ)
			}
		}
		if req.SettlementAccountID != nil {
			target, ok, err := tx.LookupAccount(ctx, companyID, *req.SettlementAccountID)
			if err != nil {
				return err
			}
			if !ok || target.IsArchived {
				return fmt.Errorf("%w: settlement account %d", shared.ErrValidation, *req.SettlementAccountID)
			}
		}
		var err error
		payment, err = tx.Insert(ctx, Payment{
			CompanyID:           companyID,
			Kind:                req.Kind,
			ContactID:           req.ContactID,
			PaymentDate:         req.PaymentDate,
			Amount:              req.Amount,
			SettlementAccountID: req.SettlementAccountID,
			Memo:                strings.TrimSpace(req.Memo),
			Status:              StatusDraft,
		})
		return err
	})
	if err != nil {
		return Payment{}, fmt.Errorf("record payment: %w", err)
	}
	return payment, nil
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Payment, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Payment{}, err
	}
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Payment, shared.Pagination, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, shared.Pagination{}, err
	}
	switch filter.Status {
	case "", StatusDraft, StatusApplied, StatusVoid:
	default:
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	items, total, err := s.repo.List(ctx, companyID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ApplyResult is the state of both records after an application.
type ApplyResult struct {
	Payment     Payment            `json:"payment"`
	Document    documents.Document `json:"document"`
	Application Application        `json:"application"`
}

// Apply matches part of a payment to a document. The application insert, the
// document balance update and the optional settlement entry commit together.
func (s *Service) Apply(ctx context.Context, companyID, paymentID int64, actor string, req ApplyRequest) (ApplyResult, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return ApplyResult{}, err
	}
	if req.AmountApplied <= 0 {
		return ApplyResult{}, fmt.Errorf("%w: amount_applied must be positive", shared.ErrValidation)
	}
	var (
		result ApplyResult
		posted bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetForUpdate(ctx, companyID, paymentID)
		if err != nil {
			return err
		}
		doc, err := tx.LockDocument(ctx, companyID, req.DocumentID)
		if err != nil {
			return err
		}
		if err := checkApplicable(payment, doc); err != nil {
			return err
		}
		if payment.AmountApplied+req.AmountApplied > payment.Amount {
			return fmt.Errorf("%w: payment %d has %s unapplied", shared.ErrOverApplication, payment.ID, payment.Unapplied())
		}
		if err := doc.ApplyPayment(req.AmountApplied); err != nil {
			return err
		}

		app := Application{PaymentID: payment.ID, DocumentID: doc.ID, AmountApplied: req.AmountApplied}
		if in, ok := settlementEntry(payment, doc, req.AmountApplied); ok {
			entry, err := s.ledger.PostInTx(ctx, tx.Querier(), companyID, actor, in)
			if err != nil {
				return err
			}
			app.JournalEntryID = &entry.ID
			posted = true
		}
		if app, err = tx.InsertApplication(ctx, app); err != nil {
			return err
		}
		if result.Document, err = tx.SaveDocument(ctx, doc); err != nil {
			return err
		}
		payment.AmountApplied += req.AmountApplied
		payment.Status = StatusApplied
		payment.Applications = append(payment.Applications, app)
		if result.Payment, err = tx.Update(ctx, payment); err != nil {
			return err
		}
		result.Application = app
		return nil
	})
	shared.Observe(s.metrics, "payment.apply", err)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("apply payment: %w", err)
	}
	if posted && s.cache != nil {
		s.cache.Invalidate(ctx, companyID)
	}
	s.record(ctx, companyID, actor, "payment.apply", result.Payment.ID, map[string]any{
		"document_id":    result.Document.ID,
		"doc_number":     result.Document.Number,
		"amount_applied": req.AmountApplied.String(),
		"balance_due":    result.Document.BalanceDue.String(),
	})
	return result, nil
}

func checkApplicable(payment Payment, doc documents.Document) error {
	if payment.Status == StatusVoid {
		return fmt.Errorf("%w: payment %d is void", shared.ErrInvalidStatus, payment.ID)
	}
	if doc.Status == documents.StatusVoid {
		return fmt.Errorf("%w: %s is void", shared.ErrInvalidStatus, doc.Number)
	}
	if doc.Kind != payment.Kind {
		return fmt.Errorf("%w: a %s payment cannot settle a %s", shared.ErrValidation, payment.Kind, doc.Kind)
	}
	if payment.ContactID != nil && *payment.ContactID != doc.ContactID {
		return fmt.Errorf("%w: %s belongs to another contact", shared.ErrValidation, doc.Number)
	}
	return nil
}

// settlementEntry moves the applied amount between the settlement account and
// the document's control account. It is only built when both are known.
func settlementEntry(payment Payment, doc documents.Document, amount shared.Amount) (journals.EntryInput, bool) {
	if payment.SettlementAccountID == nil || doc.ControlAccountID == nil {
		return journals.EntryInput{}, false
	}
	settlement, control := *payment.SettlementAccountID, *doc.ControlAccountID
	memo := fmt.Sprintf("payment %d for %s", payment.ID, doc.Number)
	lines := []journals.LineInput{
		{AccountID: settlement, Debit: amount, Memo: memo},
		{AccountID: control, Credit: amount, Memo: memo},
	}
	if payment.Kind == documents.KindBill {
		lines = []journals.LineInput{
			{AccountID: control, Debit: amount, Memo: memo},
			{AccountID: settlement, Credit: amount, Memo: memo},
		}
	}
	return journals.EntryInput{
		Date:   payment.PaymentDate,
		Memo:   memo,
		Source: journals.SourcePayment,
		Lines:  lines,
	}, true
}

// Void retires a payment that has not been applied.
func (s *Service) Void(ctx context.Context, companyID, id int64, actor string) (Payment, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Payment{}, err
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.Status == StatusVoid {
			return fmt.Errorf("%w: payment %d already void", shared.ErrInvalidStatus, id)
		}
		if current.AmountApplied > 0 {
			return fmt.Errorf("%w: payment %d has applications", shared.ErrInvalidStatus, id)
		}
		current.Status = StatusVoid
		payment, err = tx.Update(ctx, current)
		return err
	})
	if err != nil {
		return Payment{}, fmt.Errorf("void payment: %w", err)
	}
	s.record(ctx, companyID, actor, "payment.void", payment.ID, nil)
	return payment, nil
}

func (s *Service) record(ctx context.Context, companyID int64, actor, action string, paymentID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		Actor:     actor,
		Action:    action,
		Entity:    "payment",
		EntityID:  fmt.Sprintf("%d", paymentID),
		Meta:      meta,
		At:        s.now(),
	})
}
