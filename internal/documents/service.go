package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// LedgerPort is the journal engine surface used to post and void documents
// inside the document transaction.
type LedgerPort interface {
	PostInTx(ctx context.Context, q db.DBTX, companyID int64, actor string, in journals.EntryInput) (journals.Entry, error)
	VoidInTx(ctx context.Context, q db.DBTX, companyID, id int64) (journals.Entry, error)
}

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, companyID int64)
}

// Service handles invoices and bills.
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

// Create saves a draft document with the next number for its kind.
func (s *Service) Create(ctx context.Context, companyID int64, req CreateDocumentRequest) (Document, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Document{}, err
	}
	if !req.Kind.Valid() {
		return Document{}, fmt.Errorf("%w: unknown document kind %q", shared.ErrValidation, req.Kind)
	}
	if req.IssueDate.IsZero() {
		return Document{}, fmt.Errorf("%w: issue_date required", shared.ErrValidation)
	}
	due := req.IssueDate
	if req.DueDate != nil {
		due = *req.DueDate
	}
	if due.Before(req.IssueDate) {
		return Document{}, fmt.Errorf("%w: due_date before issue_date", shared.ErrValidation)
	}
	if req.TaxTotal < 0 {
		return Document{}, fmt.Errorf("%w: tax_total must not be negative", shared.ErrValidation)
	}
	if len(req.Lines) == 0 {
		return Document{}, fmt.Errorf("%w: document has no lines", shared.ErrInvalidLine)
	}
	lines, subtotal, err := buildLines(req.Lines)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		summary, err := tx.ContactSummary(ctx, companyID, req.ContactID)
		if err != nil {
			return err
		}
		if !req.Kind.AcceptsContact(summary.Type) {
			return fmt.Errorf("%w: contact %d is a %s and cannot hold a %s", shared.ErrValidation, summary.ID, summary.Type, req.Kind)
		}
		if err := checkLineAccounts(ctx, tx, companyID, lines); err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx, companyID, req.Kind)
		if err != nil {
			return err
		}
		total := subtotal + req.TaxTotal
		doc, err = tx.Insert(ctx, Document{
			CompanyID:  companyID,
			Kind:       req.Kind,
			ContactID:  req.ContactID,
			Number:     number,
			IssueDate:  req.IssueDate,
			DueDate:    due,
			Memo:       strings.TrimSpace(req.Memo),
			Subtotal:   subtotal,
			TaxTotal:   req.TaxTotal,
			Total:      total,
			BalanceDue: total,
			Status:     StatusDraft,
		})
		if err != nil {
			return err
		}
		doc.Lines, err = tx.InsertLines(ctx, doc.ID, lines)
		doc.Contact = &summary
		return err
	})
	shared.Observe(s.metrics, "document.create", err)
	if err != nil {
		return Document{}, fmt.Errorf("create %s: %w", req.Kind, err)
	}
	return doc, nil
}

func checkLineAccounts(ctx context.Context, tx TxRepository, companyID int64, lines []Line) error {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountID)
	}
	known, err := tx.LookupAccounts(ctx, companyID, ids)
	if err != nil {
		return err
	}
	for _, l := range lines {
		target, ok := known[l.AccountID]
		if !ok || target.IsArchived {
			return fmt.Errorf("%w: line %d references unusable account %d", shared.ErrInvalidLine, l.LineNo, l.AccountID)
		}
	}
	return nil
}

// Get returns the document with its lines and contact summary.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Document, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Document{}, err
	}
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Document, shared.Pagination, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, shared.Pagination{}, err
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown document kind %q", shared.ErrValidation, filter.Kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	docs, total, err := s.repo.List(ctx, companyID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return docs, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// UpdateStatus edits status and memo. It never moves money except that
// voiding a posted document voids its journal entry in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, companyID, id int64, actor string, req UpdateStatusRequest) (Document, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Document{}, err
	}
	if req.Status == nil && req.Memo == nil {
		return Document{}, fmt.Errorf("%w: nothing to update", shared.ErrValidation)
	}
	if req.Status != nil && !req.Status.Valid() {
		return Document{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, *req.Status)
	}
	var (
		doc     Document
		voided  bool
		touched bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.Status == StatusVoid {
			return fmt.Errorf("%w: %s is void", shared.ErrInvalidStatus, current.Number)
		}
		if req.Memo != nil {
			current.Memo = strings.TrimSpace(*req.Memo)
		}
		if req.Status != nil && *req.Status != current.Status {
			next := *req.Status
			if err := checkTransition(current, next); err != nil {
				return err
			}
			if next == StatusVoid {
				voided = true
				if current.JournalEntryID != nil {
					if _, err := s.ledger.VoidInTx(ctx, tx.Querier(), companyID, *current.JournalEntryID); err != nil {
						return err
					}
					touched = true
				}
			}
			current.Status = next
		}
		doc, err = tx.Update(ctx, current)
		return err
	})
	if voided {
		shared.Observe(s.metrics, "document.void", err)
	}
	if err != nil {
		return Document{}, fmt.Errorf("update document: %w", err)
	}
	if touched && s.cache != nil {
		s.cache.Invalidate(ctx, companyID)
	}
	if voided {
		s.record(ctx, companyID, actor, "document.void", doc)
	}
	return doc, nil
}

func checkTransition(current Document, next Status) error {
	switch next {
	case StatusPosted:
		return fmt.Errorf("%w: documents are posted through the post operation", shared.ErrInvalidStatus)
	case StatusPaid:
		return fmt.Errorf("%w: documents become paid through payment application", shared.ErrInvalidStatus)
	case StatusVoid:
		if current.AmountPaid > 0 {
			return fmt.Errorf("%w: %s has payments applied", shared.ErrInvalidStatus, current.Number)
		}
	case StatusPartial:
		if !current.Status.Posted() && current.AmountPaid == 0 {
			return fmt.Errorf("%w: %s is neither posted nor partly paid", shared.ErrInvalidStatus, current.Number)
		}
	case StatusDraft, StatusSent:
		if current.JournalEntryID != nil {
			return fmt.Errorf("%w: %s is already in the ledger", shared.ErrInvalidStatus, current.Number)
		}
	}
	if !canMove(current.Status, next) {
		return fmt.Errorf("%w: %s cannot move from %s to %s", shared.ErrInvalidStatus, current.Number, current.Status, next)
	}
	return nil
}

// Post recognises a draft or sent document in the ledger. Invoices debit the
// receivable control account and credit each line's account; bills mirror it.
func (s *Service) Post(ctx context.Context, companyID, id int64, actor string, req PostRequest) (Document, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Document{}, err
	}
	if req.ControlAccountID <= 0 {
		return Document{}, fmt.Errorf("%w: control_account_id required", shared.ErrValidation)
	}
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.JournalEntryID != nil || (current.Status != StatusDraft && current.Status != StatusSent) {
			return fmt.Errorf("%w: %s is %s", shared.ErrInvalidStatus, current.Number, current.Status)
		}
		in, err := postingEntry(current, req)
		if err != nil {
			return err
		}
		entry, err := s.ledger.PostInTx(ctx, tx.Querier(), companyID, actor, in)
		if err != nil {
			return err
		}
		current.Status = StatusPosted
		current.ControlAccountID = &req.ControlAccountID
		current.JournalEntryID = &entry.ID
		doc, err = tx.Update(ctx, current)
		return err
	})
	shared.Observe(s.metrics, "document.post", err)
	if err != nil {
		return Document{}, fmt.Errorf("post document: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, companyID)
	}
	s.record(ctx, companyID, actor, "document.post", doc)
	return doc, nil
}

// postingEntry builds the journal entry for a document. Zero amount lines are
// left out.
func postingEntry(doc Document, req PostRequest) (journals.EntryInput, error) {
	if doc.TaxTotal > 0 && req.TaxAccountID == nil {
		return journals.EntryInput{}, fmt.Errorf("%w: tax_account_id required when tax_total is set", shared.ErrInvalidLine)
	}
	side := func(accountID int64, amount shared.Amount, debit bool, memo string) journals.LineInput {
		if debit {
			return journals.LineInput{AccountID: accountID, Debit: amount, Memo: memo}
		}
		return journals.LineInput{AccountID: accountID, Credit: amount, Memo: memo}
	}
	// Invoices debit the control account; bills credit it.
	controlDebit := doc.Kind == KindInvoice
	lines := []journals.LineInput{side(req.ControlAccountID, doc.Total, controlDebit, doc.Number)}
	for _, l := range doc.Lines {
		if l.Amount == 0 {
			continue
		}
		lines = append(lines, side(l.AccountID, l.Amount, !controlDebit, l.Description))
	}
	if doc.TaxTotal > 0 {
		lines = append(lines, side(*req.TaxAccountID, doc.TaxTotal, !controlDebit, "tax"))
	}
	source := journals.SourceInvoice
	if doc.Kind == KindBill {
		source = journals.SourceBill
	}
	return journals.EntryInput{
		Date:   doc.IssueDate,
		Memo:   fmt.Sprintf("%s %s", doc.Kind, doc.Number),
		Source: source,
		Lines:  lines,
	}, nil
}

func (s *Service) record(ctx context.Context, companyID int64, actor, action string, doc Document) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		Actor:     actor,
		Action:    action,
		Entity:    string(doc.Kind),
		EntityID:  fmt.Sprintf("%d", doc.ID),
		Meta: map[string]any{
			"number": doc.Number,
			"total":  doc.Total.String(),
			"status": string(doc.Status),
		},
		At: s.now(),
	})
}
