package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository defines account data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Account, error)
	List(ctx context.Context, companyID int64, filter ListFilter) ([]Account, error)
}

// TxRepository defines account operations within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, companyID, id int64) (Account, error)
	CodeExists(ctx context.Context, companyID int64, code string, excludeID int64) (bool, error)
	Insert(ctx context.Context, account Account) (Account, error)
	Update(ctx context.Context, account Account) (Account, error)
	HasJournalLines(ctx context.Context, accountID int64) (bool, error)
	Delete(ctx context.Context, companyID, id int64) error
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{q: tx})
	})
}

const accountColumns = `id, company_id, code, name, type, subtype, parent_id, current_balance, is_archived, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.ParentID, &a.CurrentBalance, &a.IsArchived, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: account", shared.ErrNotFound)
		}
		return Account{}, err
	}
	return a, nil
}

func (r *pgRepository) Get(ctx context.Context, companyID, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *pgRepository) List(ctx context.Context, companyID int64, filter ListFilter) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE company_id=$1
AND ($2 = '' OR type = $2) AND ($3 OR NOT is_archived) ORDER BY code`
	rows, err := r.pool.Query(ctx, query, companyID, string(filter.Type), filter.IncludeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	q db.DBTX
}

func (r *pgTxRepository) GetForUpdate(ctx context.Context, companyID, id int64) (Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
}

func (r *pgTxRepository) CodeExists(ctx context.Context, companyID int64, code string, excludeID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE company_id=$1 AND code=$2 AND id<>$3)`, companyID, code, excludeID).Scan(&exists)
	return exists, err
}

func (r *pgTxRepository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.q.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, subtype, parent_id)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+accountColumns, a.CompanyID, a.Code, a.Name, a.Type, a.Subtype, a.ParentID)
	out, err := scanAccount(row)
	if err != nil && db.IsUniqueViolation(err, "uq_accounts_company_code") {
		return Account{}, fmt.Errorf("%w: account code %s", shared.ErrDuplicateCode, a.Code)
	}
	return out, err
}

func (r *pgTxRepository) Update(ctx context.Context, a Account) (Account, error) {
	row := r.q.QueryRow(ctx, `UPDATE accounts SET code=$3, name=$4, type=$5, subtype=$6, parent_id=$7, is_archived=$8, updated_at=NOW()
WHERE company_id=$1 AND id=$2 RETURNING `+accountColumns, a.CompanyID, a.ID, a.Code, a.Name, a.Type, a.Subtype, a.ParentID, a.IsArchived)
	out, err := scanAccount(row)
	if err != nil && db.IsUniqueViolation(err, "uq_accounts_company_code") {
		return Account{}, fmt.Errorf("%w: account code %s", shared.ErrDuplicateCode, a.Code)
	}
	return out, err
}

func (r *pgTxRepository) HasJournalLines(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM journal_lines WHERE account_id=$1)`, accountID).Scan(&exists)
	return exists, err
}

func (r *pgTxRepository) Delete(ctx context.Context, companyID, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: account is still referenced", shared.ErrHasTransactions)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account", shared.ErrNotFound)
	}
	return nil
}
