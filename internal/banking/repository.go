package banking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	LinkedAccount(ctx context.Context, companyID, accountID int64) (accounts.PostingTarget, bool, error)
	CreateAccount(ctx context.Context, a BankAccount) (BankAccount, error)
	GetAccount(ctx context.Context, companyID, id int64) (BankAccount, error)
	ListAccounts(ctx context.Context, companyID int64) ([]BankAccount, error)
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	GetTransaction(ctx context.Context, companyID, id int64) (Transaction, error)
	ListTransactions(ctx context.Context, companyID int64, filter TransactionFilter) ([]Transaction, int, error)
	SetStatus(ctx context.Context, companyID, id int64, status TxStatus) (Transaction, error)
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) LinkedAccount(ctx context.Context, companyID, accountID int64) (accounts.PostingTarget, bool, error) {
	found, err := accounts.LookupForDraft(ctx, r.db, companyID, []int64{accountID})
	if err != nil {
		return accounts.PostingTarget{}, false, err
	}
	target, ok := found[accountID]
	return target, ok, nil
}

const bankAccountColumns = `id, company_id, name, institution, mask, linked_account_id, created_at`

func scanBankAccount(row pgx.Row) (BankAccount, error) {
	var a BankAccount
	err := row.Scan(&a.ID, &a.CompanyID, &a.Name, &a.Institution, &a.Mask, &a.LinkedAccountID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BankAccount{}, fmt.Errorf("%w: bank account", shared.ErrNotFound)
	}
	return a, err
}

func (r *repository) CreateAccount(ctx context.Context, a BankAccount) (BankAccount, error) {
	return scanBankAccount(r.db.QueryRow(ctx, `INSERT INTO bank_accounts (company_id, name, institution, mask, linked_account_id)
VALUES ($1,$2,$3,$4,$5) RETURNING `+bankAccountColumns, a.CompanyID, a.Name, a.Institution, a.Mask, a.LinkedAccountID))
}

func (r *repository) GetAccount(ctx context.Context, companyID, id int64) (BankAccount, error) {
	return scanBankAccount(r.db.QueryRow(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *repository) ListAccounts(ctx context.Context, companyID int64) ([]BankAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE company_id=$1 ORDER BY name, id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BankAccount
	for rows.Next() {
		a, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TransactionColumns is the select list understood by ScanTransaction.
const TransactionColumns = `id, company_id, bank_account_id, posted_date, name, amount, status, reconciled_session_id, created_at`

// ScanTransaction reads a bank transaction row selected with TransactionColumns.
func ScanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.CompanyID, &t.BankAccountID, &t.PostedDate, &t.Name, &t.Amount, &t.Status, &t.ReconciledSessionID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("%w: bank transaction", shared.ErrNotFound)
	}
	return t, err
}

func (r *repository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	return ScanTransaction(r.db.QueryRow(ctx, `INSERT INTO bank_transactions (company_id, bank_account_id, posted_date, name, amount, status)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+TransactionColumns, t.CompanyID, t.BankAccountID, t.PostedDate, t.Name, t.Amount, t.Status))
}

func (r *repository) GetTransaction(ctx context.Context, companyID, id int64) (Transaction, error) {
	return ScanTransaction(r.db.QueryRow(ctx, `SELECT `+TransactionColumns+` FROM bank_transactions WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *repository) ListTransactions(ctx context.Context, companyID int64, filter TransactionFilter) ([]Transaction, int, error) {
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	where := `WHERE company_id=$1 AND ($2 = 0 OR bank_account_id = $2) AND ($3 = '' OR status = $3)
AND ($4::date IS NULL OR posted_date >= $4) AND ($5::date IS NULL OR posted_date <= $5)`
	args := []any{companyID, filter.BankAccountID, string(filter.Status), filter.From, filter.To}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bank_transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+TransactionColumns+` FROM bank_transactions `+where+`
ORDER BY posted_date DESC, id DESC LIMIT $6 OFFSET $7`, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := ScanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *repository) SetStatus(ctx context.Context, companyID, id int64, status TxStatus) (Transaction, error) {
	return ScanTransaction(r.db.QueryRow(ctx, `UPDATE bank_transactions SET status=$3 WHERE company_id=$1 AND id=$2
RETURNING `+TransactionColumns, companyID, id, status))
}
