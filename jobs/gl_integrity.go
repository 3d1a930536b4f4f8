package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// AccountState is an account's stored running balance.
type AccountState struct {
	AccountID int64
	Code      string
	Type      accounts.AccountType
	Balance   shared.Amount
}

// PostedLine is one line of a posted (non-void) journal entry.
type PostedLine struct {
	EntryID   int64
	AccountID int64
	Debit     shared.Amount
	Credit    shared.Amount
}

// BalanceMismatch reports an account whose stored balance differs from the
// replay of its posted lines.
type BalanceMismatch struct {
	AccountID int64
	Code      string
	Stored    shared.Amount
	Replayed  shared.Amount
}

// EntryMismatch reports a posted entry whose debits and credits differ.
type EntryMismatch struct {
	EntryID int64
	Debit   shared.Amount
	Credit  shared.Amount
}

// IntegrityReport is the outcome of one company's replay.
type IntegrityReport struct {
	CompanyID int64
	Accounts  int
	Entries   int
	Balances  []BalanceMismatch
	Unbalance []EntryMismatch
}

// Clean reports whether the replay found nothing.
func (r IntegrityReport) Clean() bool {
	return len(r.Balances) == 0 && len(r.Unbalance) == 0
}

// Replay recomputes every account balance from posted lines and verifies
// every entry balances. Voided entries are excluded by the caller; their
// reversal already netted them out of the stored balance.
func Replay(companyID int64, states []AccountState, lines []PostedLine) IntegrityReport {
	report := IntegrityReport{CompanyID: companyID, Accounts: len(states)}
	types := make(map[int64]accounts.AccountType, len(states))
	for _, s := range states {
		types[s.AccountID] = s.Type
	}

	replayed := make(map[int64]shared.Amount, len(states))
	type totals struct{ debit, credit shared.Amount }
	entries := make(map[int64]totals)
	for _, line := range lines {
		replayed[line.AccountID] += types[line.AccountID].BalanceDelta(line.Debit, line.Credit)
		t := entries[line.EntryID]
		t.debit += line.Debit
		t.credit += line.Credit
		entries[line.EntryID] = t
	}
	report.Entries = len(entries)

	for _, s := range states {
		if got := replayed[s.AccountID]; got != s.Balance {
			report.Balances = append(report.Balances, BalanceMismatch{AccountID: s.AccountID, Code: s.Code, Stored: s.Balance, Replayed: got})
		}
	}
	for id, t := range entries {
		if t.debit != t.credit {
			report.Unbalance = append(report.Unbalance, EntryMismatch{EntryID: id, Debit: t.debit, Credit: t.credit})
		}
	}
	sort.Slice(report.Balances, func(i, j int) bool { return report.Balances[i].Code < report.Balances[j].Code })
	sort.Slice(report.Unbalance, func(i, j int) bool { return report.Unbalance[i].EntryID < report.Unbalance[j].EntryID })
	return report
}

// LedgerSnapshot is a company's stored balances and posted lines as seen by
// one transaction.
type LedgerSnapshot struct {
	States []AccountState
	Lines  []PostedLine
}

// IntegrityStore reads the ledger state the replay needs. Snapshot must read
// balances and lines from the same point in time, or concurrent postings show
// up as drift.
type IntegrityStore interface {
	Companies(ctx context.Context) ([]int64, error)
	Snapshot(ctx context.Context, companyID int64) (LedgerSnapshot, error)
}

// PGIntegrityStore reads from Postgres.
type PGIntegrityStore struct {
	pool *pgxpool.Pool
}

func NewPGIntegrityStore(pool *pgxpool.Pool) *PGIntegrityStore {
	return &PGIntegrityStore{pool: pool}
}

func (s *PGIntegrityStore) Companies(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM companies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Snapshot runs both reads in one read-only repeatable read transaction.
func (s *PGIntegrityStore) Snapshot(ctx context.Context, companyID int64) (LedgerSnapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return LedgerSnapshot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var snap LedgerSnapshot
	if snap.States, err = accountStates(ctx, tx, companyID); err != nil {
		return LedgerSnapshot{}, err
	}
	if snap.Lines, err = postedLines(ctx, tx, companyID); err != nil {
		return LedgerSnapshot{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return LedgerSnapshot{}, err
	}
	return snap, nil
}

func accountStates(ctx context.Context, tx pgx.Tx, companyID int64) ([]AccountState, error) {
	rows, err := tx.Query(ctx, `SELECT id, code, type, current_balance FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountState
	for rows.Next() {
		var a AccountState
		if err := rows.Scan(&a.AccountID, &a.Code, &a.Type, &a.Balance); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func postedLines(ctx context.Context, tx pgx.Tx, companyID int64) ([]PostedLine, error) {
	rows, err := tx.Query(ctx, `SELECT l.journal_id, l.account_id, l.debit, l.credit
FROM journal_lines l JOIN journal_entries e ON e.id = l.journal_id
WHERE e.company_id=$1 AND e.status='posted'`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PostedLine
	for rows.Next() {
		var l PostedLine
		if err := rows.Scan(&l.EntryID, &l.AccountID, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GLIntegrityJob reports drift between stored balances and posted history.
// It never repairs anything.
type GLIntegrityJob struct {
	store   IntegrityStore
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

func NewGLIntegrityJob(store IntegrityStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &GLIntegrityJob{store: store, logger: logger, metrics: metrics}
}

// Handle processes TaskGLIntegrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload GLIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("gl integrity payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload.CompanyID)
	return err
}

// Run checks one company, or all of them when companyID is zero.
func (j *GLIntegrityJob) Run(ctx context.Context, companyID int64) ([]IntegrityReport, error) {
	tracker := j.metrics.Track("gl_integrity")
	companies := []int64{companyID}
	if companyID == 0 {
		var err error
		if companies, err = j.store.Companies(ctx); err != nil {
			return nil, tracker.End(err)
		}
	}
	reports := make([]IntegrityReport, 0, len(companies))
	for _, id := range companies {
		report, err := j.check(ctx, id)
		if err != nil {
			return reports, tracker.End(fmt.Errorf("company %d: %w", id, err))
		}
		reports = append(reports, report)
	}
	return reports, tracker.End(nil)
}

func (j *GLIntegrityJob) check(ctx context.Context, companyID int64) (IntegrityReport, error) {
	snap, err := j.store.Snapshot(ctx, companyID)
	if err != nil {
		return IntegrityReport{}, err
	}
	report := Replay(companyID, snap.States, snap.Lines)
	j.metrics.AddMismatches("balance", companyID, len(report.Balances))
	j.metrics.AddMismatches("entry", companyID, len(report.Unbalance))
	for _, m := range report.Balances {
		j.logger.Error("account balance drift",
			slog.String("job", "gl_integrity"),
			slog.Int64("company_id", companyID),
			slog.String("account", m.Code),
			slog.String("stored", m.Stored.String()),
			slog.String("replayed", m.Replayed.String()))
	}
	for _, m := range report.Unbalance {
		j.logger.Error("unbalanced posted entry",
			slog.String("job", "gl_integrity"),
			slog.Int64("company_id", companyID),
			slog.Int64("entry_id", m.EntryID),
			slog.String("debit", m.Debit.String()),
			slog.String("credit", m.Credit.String()))
	}
	if report.Clean() {
		j.logger.Info("ledger integrity ok",
			slog.String("job", "gl_integrity"),
			slog.Int64("company_id", companyID),
			slog.Int("accounts", report.Accounts),
			slog.Int("entries", report.Entries))
	}
	return report, nil
}
