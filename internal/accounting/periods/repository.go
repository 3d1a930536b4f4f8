package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository defines period persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Period, error)
	List(ctx context.Context, companyID int64) ([]Period, error)
	IsLocked(ctx context.Context, companyID int64, date shared.Date) (bool, error)
}

// TxRepository defines period operations within a transaction.
type TxRepository interface {
	LockCompany(ctx context.Context, companyID int64) error
	Overlaps(ctx context.Context, companyID int64, start, end shared.Date) (bool, error)
	Insert(ctx context.Context, p Period) (Period, error)
	GetForUpdate(ctx context.Context, companyID, id int64) (Period, error)
	MarkClosed(ctx context.Context, companyID, id int64, actor string, at time.Time) (Period, error)
}

// LockedOn reports whether date falls inside a closed period's lock range.
// Candidate rows are share-locked so a concurrent close serializes against
// the caller's transaction.
func LockedOn(ctx context.Context, q db.DBTX, companyID int64, date shared.Date) (bool, error) {
	rows, err := q.Query(ctx, `SELECT is_closed FROM accounting_periods
WHERE company_id=$1 AND lock_date >= $2 FOR SHARE`, companyID, date)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	locked := false
	for rows.Next() {
		var closed bool
		if err := rows.Scan(&closed); err != nil {
			return false, err
		}
		locked = locked || closed
	}
	return locked, rows.Err()
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{q: tx})
	})
}

const periodColumns = `id, company_id, start_date, end_date, lock_date, is_closed, closed_at, closed_by, created_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	if err := row.Scan(&p.ID, &p.CompanyID, &p.StartDate, &p.EndDate, &p.LockDate, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("%w: period", shared.ErrNotFound)
		}
		return Period{}, err
	}
	return p, nil
}

func (r *pgRepository) Get(ctx context.Context, companyID, id int64) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *pgRepository) List(ctx context.Context, companyID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE company_id=$1 ORDER BY start_date`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) IsLocked(ctx context.Context, companyID int64, date shared.Date) (bool, error) {
	var locked bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounting_periods
WHERE company_id=$1 AND is_closed AND lock_date >= $2)`, companyID, date).Scan(&locked)
	return locked, err
}

type pgTxRepository struct {
	q db.DBTX
}

func (r *pgTxRepository) LockCompany(ctx context.Context, companyID int64) error {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT id FROM companies WHERE id=$1 FOR UPDATE`, companyID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: company", shared.ErrNotFound)
	}
	return err
}

func (r *pgTxRepository) Overlaps(ctx context.Context, companyID int64, start, end shared.Date) (bool, error) {
	var overlaps bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounting_periods
WHERE company_id=$1 AND start_date <= $3 AND end_date >= $2)`, companyID, start, end).Scan(&overlaps)
	return overlaps, err
}

func (r *pgTxRepository) Insert(ctx context.Context, p Period) (Period, error) {
	return scanPeriod(r.q.QueryRow(ctx, `INSERT INTO accounting_periods (company_id, start_date, end_date, lock_date)
VALUES ($1,$2,$3,$4) RETURNING `+periodColumns, p.CompanyID, p.StartDate, p.EndDate, p.LockDate))
}

func (r *pgTxRepository) GetForUpdate(ctx context.Context, companyID, id int64) (Period, error) {
	return scanPeriod(r.q.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
}

func (r *pgTxRepository) MarkClosed(ctx context.Context, companyID, id int64, actor string, at time.Time) (Period, error) {
	return scanPeriod(r.q.QueryRow(ctx, `UPDATE accounting_periods SET is_closed=TRUE, closed_at=$3, closed_by=$4
WHERE company_id=$1 AND id=$2 RETURNING `+periodColumns, companyID, id, at, actor))
}
