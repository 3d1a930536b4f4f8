package journals

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository encapsulates journal persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	// Bind exposes the transactional operations on a transaction owned by
	// another package, so documents can post in their own unit of work.
	Bind(q db.DBTX) TxRepository
	Get(ctx context.Context, companyID, id int64) (Entry, error)
	List(ctx context.Context, companyID int64, filter ListFilter) ([]Entry, int, error)
}

// TxRepository exposes the operations available within a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, companyID int64) (string, error)
	LookupAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error)
	LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error)
	ApplyDelta(ctx context.Context, companyID, accountID int64, delta shared.Amount) error
	IsLocked(ctx context.Context, companyID int64, date shared.Date) (bool, error)
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	UpdateEntry(ctx context.Context, entry Entry) (Entry, error)
	ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) ([]Line, error)
	GetForUpdate(ctx context.Context, companyID, id int64) (Entry, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

func (r *repository) Bind(q db.DBTX) TxRepository {
	return &txRepository{q: q}
}

const entryColumns = `id, company_id, entry_number, entry_date, memo, status, source, total_debit, total_credit, created_by, posted_at, voided_at, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.CompanyID, &e.Number, &e.Date, &e.Memo, &e.Status, &e.Source, &e.TotalDebit, &e.TotalCredit, &e.CreatedBy, &e.PostedAt, &e.VoidedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: journal entry", shared.ErrNotFound)
		}
		return Entry{}, err
	}
	return e, nil
}

func loadLines(ctx context.Context, q db.DBTX, entryID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_id, line_no, account_id, debit, credit, memo
FROM journal_lines WHERE journal_id=$1 ORDER BY line_no`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.JournalID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		return Entry{}, err
	}
	entry.Lines, err = loadLines(ctx, r.pool, entry.ID)
	return entry, err
}

func (r *repository) List(ctx context.Context, companyID int64, filter ListFilter) ([]Entry, int, error) {
	where := `WHERE company_id=$1 AND ($2 = '' OR status = $2)
AND ($3::date IS NULL OR entry_date >= $3) AND ($4::date IS NULL OR entry_date <= $4)`
	args := []any{companyID, string(filter.Status), filter.From, filter.To}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries `+where+`
ORDER BY entry_date DESC, id DESC LIMIT $5 OFFSET $6`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

type txRepository struct {
	q db.DBTX
}

func (r *txRepository) NextNumber(ctx context.Context, companyID int64) (string, error) {
	seq, err := db.NextSequence(ctx, r.q, companyID, "JE")
	if err != nil {
		return "", err
	}
	return db.FormatNumber("JE", seq, 4), nil
}

func (r *txRepository) LookupAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error) {
	return accounts.LookupForDraft(ctx, r.q, companyID, ids)
}

func (r *txRepository) LockAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error) {
	return accounts.LockForPosting(ctx, r.q, companyID, ids)
}

func (r *txRepository) ApplyDelta(ctx context.Context, companyID, accountID int64, delta shared.Amount) error {
	return accounts.ApplyDelta(ctx, r.q, companyID, accountID, delta)
}

func (r *txRepository) IsLocked(ctx context.Context, companyID int64, date shared.Date) (bool, error) {
	return periods.LockedOn(ctx, r.q, companyID, date)
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.q.QueryRow(ctx, `INSERT INTO journal_entries
(company_id, entry_number, entry_date, memo, status, source, total_debit, total_credit, created_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+entryColumns,
		e.CompanyID, e.Number, e.Date, e.Memo, e.Status, e.Source, e.TotalDebit, e.TotalCredit, e.CreatedBy, e.PostedAt)
	out, err := scanEntry(row)
	if err != nil && db.IsUniqueViolation(err, "uq_journal_entries_number") {
		return Entry{}, fmt.Errorf("%w: entry number %s", shared.ErrDuplicateCode, e.Number)
	}
	return out, err
}

func (r *txRepository) UpdateEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.q.QueryRow(ctx, `UPDATE journal_entries SET entry_date=$3, memo=$4, status=$5, total_debit=$6, total_credit=$7,
posted_at=$8, voided_at=$9, updated_at=NOW() WHERE company_id=$1 AND id=$2 RETURNING `+entryColumns,
		e.CompanyID, e.ID, e.Date, e.Memo, e.Status, e.TotalDebit, e.TotalCredit, e.PostedAt, e.VoidedAt)
	return scanEntry(row)
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) ([]Line, error) {
	if _, err := r.q.Exec(ctx, `DELETE FROM journal_lines WHERE journal_id=$1`, entryID); err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(lines))
	for idx, in := range lines {
		line := Line{JournalID: entryID, LineNo: idx + 1, AccountID: in.AccountID, Debit: in.Debit, Credit: in.Credit, Memo: in.Memo}
		err := r.q.QueryRow(ctx, `INSERT INTO journal_lines (journal_id, line_no, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entryID, line.LineNo, line.AccountID, line.Debit, line.Credit, line.Memo).Scan(&line.ID)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return nil, fmt.Errorf("%w: line %d references an unknown account", shared.ErrInvalidLine, idx+1)
			}
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, companyID, id int64) (Entry, error) {
	entry, err := scanEntry(r.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		return Entry{}, err
	}
	entry.Lines, err = loadLines(ctx, r.q, entry.ID)
	return entry, err
}
