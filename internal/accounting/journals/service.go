package journals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheInvalidator drops cached report figures after balances move.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, companyID int64)
}

// Service is the journal engine: the only writer of account balances.
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

func (s *Service) Get(ctx context.Context, companyID, id int64) (Entry, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Entry{}, err
	}
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Entry, shared.Pagination, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return nil, shared.Pagination{}, err
	}
	switch filter.Status {
	case "", StatusDraft, StatusPosted, StatusVoid:
	default:
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	entries, total, err := s.repo.List(ctx, companyID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// CreateDraft saves an entry without touching balances. Drafts may be
// unbalanced but every line must be well formed.
func (s *Service) CreateDraft(ctx context.Context, companyID int64, actor string, in EntryInput) (Entry, error) {
	if err := s.checkInput(companyID, in); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		debit, credit, err := s.validateDraft(ctx, tx, companyID, in.Lines)
		if err != nil {
			return err
		}
		number, err := tx.NextNumber(ctx, companyID)
		if err != nil {
			return err
		}
		entry, err = tx.InsertEntry(ctx, Entry{
			CompanyID:   companyID,
			Number:      number,
			Date:        in.Date,
			Memo:        strings.TrimSpace(in.Memo),
			Status:      StatusDraft,
			Source:      sourceOrManual(in.Source),
			TotalDebit:  debit,
			TotalCredit: credit,
			CreatedBy:   actor,
		})
		if err != nil {
			return err
		}
		entry.Lines, err = tx.ReplaceLines(ctx, entry.ID, in.Lines)
		return err
	})
	shared.Observe(s.metrics, "journal.draft", err)
	if err != nil {
		return Entry{}, fmt.Errorf("create draft: %w", err)
	}
	return entry, nil
}

// UpdateDraft replaces the date, memo and lines of a draft entry.
func (s *Service) UpdateDraft(ctx context.Context, companyID, id int64, in EntryInput) (Entry, error) {
	if err := s.checkInput(companyID, in); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: only draft entries can be edited", shared.ErrInvalidStatus)
		}
		debit, credit, err := s.validateDraft(ctx, tx, companyID, in.Lines)
		if err != nil {
			return err
		}
		current.Date = in.Date
		current.Memo = strings.TrimSpace(in.Memo)
		current.TotalDebit = debit
		current.TotalCredit = credit
		entry, err = tx.UpdateEntry(ctx, current)
		if err != nil {
			return err
		}
		entry.Lines, err = tx.ReplaceLines(ctx, entry.ID, in.Lines)
		return err
	})
	if err != nil {
		return Entry{}, fmt.Errorf("update draft: %w", err)
	}
	return entry, nil
}

// Post validates a saved draft and applies its balance effects.
func (s *Service) Post(ctx context.Context, companyID, id int64, actor string) (Entry, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: entry %s is %s", shared.ErrInvalidStatus, current.Number, current.Status)
		}
		lines := inputsFromLines(current.Lines)
		debit, credit, err := s.applyPosting(ctx, tx, companyID, current.Date, lines)
		if err != nil {
			return err
		}
		postedAt := s.now()
		current.Status = StatusPosted
		current.PostedAt = &postedAt
		current.TotalDebit = debit
		current.TotalCredit = credit
		entry, err = tx.UpdateEntry(ctx, current)
		entry.Lines = current.Lines
		return err
	})
	return s.afterPost(ctx, companyID, actor, entry, err)
}

// CreateAndPost creates and posts an entry in one unit of work. On any
// validation failure nothing is persisted.
func (s *Service) CreateAndPost(ctx context.Context, companyID int64, actor string, in EntryInput) (Entry, error) {
	if err := s.checkInput(companyID, in); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.postWithin(ctx, tx, companyID, actor, in)
		return err
	})
	return s.afterPost(ctx, companyID, actor, entry, err)
}

// PostInTx creates and posts an entry on a transaction owned by the caller.
// The caller is responsible for committing and for invalidating caches.
func (s *Service) PostInTx(ctx context.Context, q db.DBTX, companyID int64, actor string, in EntryInput) (Entry, error) {
	if err := s.checkInput(companyID, in); err != nil {
		return Entry{}, err
	}
	entry, err := s.postWithin(ctx, s.repo.Bind(q), companyID, actor, in)
	shared.Observe(s.metrics, "journal.post", err)
	return entry, err
}

func (s *Service) postWithin(ctx context.Context, tx TxRepository, companyID int64, actor string, in EntryInput) (Entry, error) {
	debit, credit, err := s.applyPosting(ctx, tx, companyID, in.Date, in.Lines)
	if err != nil {
		return Entry{}, err
	}
	number, err := tx.NextNumber(ctx, companyID)
	if err != nil {
		return Entry{}, err
	}
	postedAt := s.now()
	entry, err := tx.InsertEntry(ctx, Entry{
		CompanyID:   companyID,
		Number:      number,
		Date:        in.Date,
		Memo:        strings.TrimSpace(in.Memo),
		Status:      StatusPosted,
		Source:      sourceOrManual(in.Source),
		TotalDebit:  debit,
		TotalCredit: credit,
		CreatedBy:   actor,
		PostedAt:    &postedAt,
	})
	if err != nil {
		return Entry{}, err
	}
	entry.Lines, err = tx.ReplaceLines(ctx, entry.ID, in.Lines)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Service) afterPost(ctx context.Context, companyID int64, actor string, entry Entry, err error) (Entry, error) {
	shared.Observe(s.metrics, "journal.post", err)
	if err != nil {
		return Entry{}, fmt.Errorf("post entry: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, companyID)
	}
	s.record(ctx, companyID, actor, "journal.post", entry)
	return entry, nil
}

// Void reverses a posted entry's balance effects, or retires a draft.
func (s *Service) Void(ctx context.Context, companyID, id int64, actor string) (Entry, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.voidWithin(ctx, tx, companyID, id)
		return err
	})
	shared.Observe(s.metrics, "journal.void", err)
	if err != nil {
		return Entry{}, fmt.Errorf("void entry: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, companyID)
	}
	s.record(ctx, companyID, actor, "journal.void", entry)
	return entry, nil
}

// VoidInTx voids an entry on a transaction owned by the caller.
func (s *Service) VoidInTx(ctx context.Context, q db.DBTX, companyID, id int64) (Entry, error) {
	if err := shared.RequireCompany(companyID); err != nil {
		return Entry{}, err
	}
	entry, err := s.voidWithin(ctx, s.repo.Bind(q), companyID, id)
	shared.Observe(s.metrics, "journal.void", err)
	return entry, err
}

func (s *Service) voidWithin(ctx context.Context, tx TxRepository, companyID, id int64) (Entry, error) {
	current, err := tx.GetForUpdate(ctx, companyID, id)
	if err != nil {
		return Entry{}, err
	}
	switch current.Status {
	case StatusVoid:
		return Entry{}, fmt.Errorf("%w: entry %s already void", shared.ErrInvalidStatus, current.Number)
	case StatusPosted:
		locked, err := tx.IsLocked(ctx, companyID, current.Date)
		if err != nil {
			return Entry{}, err
		}
		if locked {
			return Entry{}, fmt.Errorf("%w: entry dated %s", shared.ErrPeriodLocked, current.Date)
		}
		targets, err := tx.LockAccounts(ctx, companyID, lineAccountIDs(inputsFromLines(current.Lines)))
		if err != nil {
			return Entry{}, err
		}
		reversed := make([]LineInput, 0, len(current.Lines))
		for _, line := range current.Lines {
			reversed = append(reversed, LineInput{AccountID: line.AccountID, Debit: line.Credit, Credit: line.Debit})
		}
		if err := applyDeltas(ctx, tx, companyID, targets, reversed); err != nil {
			return Entry{}, err
		}
	}
	voidedAt := s.now()
	lines := current.Lines
	current.Status = StatusVoid
	current.VoidedAt = &voidedAt
	entry, err := tx.UpdateEntry(ctx, current)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (s *Service) checkInput(companyID int64, in EntryInput) error {
	if err := shared.RequireCompany(companyID); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: entry_date required", shared.ErrValidation)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: entry has no lines", shared.ErrInvalidLine)
	}
	return nil
}

func (s *Service) validateDraft(ctx context.Context, tx TxRepository, companyID int64, lines []LineInput) (shared.Amount, shared.Amount, error) {
	known, err := tx.LookupAccounts(ctx, companyID, lineAccountIDs(lines))
	if err != nil {
		return 0, 0, err
	}
	if err := checkAccounts(known, lines); err != nil {
		return 0, 0, err
	}
	return checkLineShapes(lines)
}

// applyPosting runs the posting checks in order (accounts, line shape,
// balance, period lock) and then moves balances. Accounts stay row-locked
// until the surrounding transaction ends.
func (s *Service) applyPosting(ctx context.Context, tx TxRepository, companyID int64, date shared.Date, lines []LineInput) (shared.Amount, shared.Amount, error) {
	targets, err := tx.LockAccounts(ctx, companyID, lineAccountIDs(lines))
	if err != nil {
		return 0, 0, err
	}
	if err := checkAccounts(targets, lines); err != nil {
		return 0, 0, err
	}
	if len(lines) < 2 {
		return 0, 0, fmt.Errorf("%w: a posted entry needs at least two lines", shared.ErrInvalidLine)
	}
	debit, credit, err := checkLineShapes(lines)
	if err != nil {
		return 0, 0, err
	}
	if debit != credit {
		return 0, 0, fmt.Errorf("%w: debits %s, credits %s", shared.ErrUnbalancedEntry, debit, credit)
	}
	locked, err := tx.IsLocked(ctx, companyID, date)
	if err != nil {
		return 0, 0, err
	}
	if locked {
		return 0, 0, fmt.Errorf("%w: entry dated %s", shared.ErrPeriodLocked, date)
	}
	if err := applyDeltas(ctx, tx, companyID, targets, lines); err != nil {
		return 0, 0, err
	}
	return debit, credit, nil
}

func checkAccounts(known map[int64]accounts.PostingTarget, lines []LineInput) error {
	for idx, line := range lines {
		target, ok := known[line.AccountID]
		if !ok {
			return fmt.Errorf("%w: line %d references unknown account %d", shared.ErrInvalidLine, idx+1, line.AccountID)
		}
		if target.IsArchived {
			return fmt.Errorf("%w: line %d references archived account %d", shared.ErrInvalidLine, idx+1, line.AccountID)
		}
	}
	return nil
}

// applyDeltas nets the lines per account and applies them in ascending
// account order.
func applyDeltas(ctx context.Context, tx TxRepository, companyID int64, targets map[int64]accounts.PostingTarget, lines []LineInput) error {
	deltas := make(map[int64]shared.Amount, len(lines))
	for _, line := range lines {
		target, ok := targets[line.AccountID]
		if !ok {
			return fmt.Errorf("%w: account %d", shared.ErrInvalidLine, line.AccountID)
		}
		deltas[line.AccountID] += target.Type.BalanceDelta(line.Debit, line.Credit)
	}
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if deltas[id] == 0 {
			continue
		}
		if err := tx.ApplyDelta(ctx, companyID, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, companyID int64, actor, action string, entry Entry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		Actor:     actor,
		Action:    action,
		Entity:    "journal_entry",
		EntityID:  fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"number": entry.Number,
			"date":   entry.Date.String(),
			"total":  entry.TotalDebit.String(),
		},
		At: s.now(),
	})
}

func sourceOrManual(source string) string {
	if source == "" {
		return SourceManual
	}
	return source
}
