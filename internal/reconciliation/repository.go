package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/banking"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Session, error)
	List(ctx context.Context, companyID, bankAccountID int64) ([]Session, error)
	Items(ctx context.Context, sessionID int64) ([]Item, error)
	ClearedAmounts(ctx context.Context, sessionID int64) ([]shared.Amount, error)
}

// TxRepository exposes the operations available within a transaction.
type TxRepository interface {
	// LockBankAccount serializes session starts per bank account.
	LockBankAccount(ctx context.Context, companyID, bankAccountID int64) error
	HasOpenSession(ctx context.Context, companyID, bankAccountID int64) (bool, error)
	PreviousEnding(ctx context.Context, companyID, bankAccountID int64) (shared.Amount, bool, error)
	Insert(ctx context.Context, s Session) (Session, error)
	GetForUpdate(ctx context.Context, companyID, id int64) (Session, error)
	LockTransaction(ctx context.Context, companyID, id int64) (banking.Transaction, error)
	UpsertItem(ctx context.Context, item Item) (Item, error)
	ClearedTransactions(ctx context.Context, sessionID int64) ([]banking.Transaction, error)
	StampReconciled(ctx context.Context, sessionID int64, transactionIDs []int64) error
	MarkCompleted(ctx context.Context, s Session) (Session, error)
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

const sessionColumns = `id, company_id, bank_account_id, statement_start, statement_end, statement_ending_balance,
opening_balance, status, completed_at, completed_by, created_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.CompanyID, &s.BankAccountID, &s.StatementStart, &s.StatementEnd, &s.StatementEndingBalance,
		&s.OpeningBalance, &s.Status, &s.CompletedAt, &s.CompletedBy, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: reconciliation session", shared.ErrNotFound)
	}
	return s, err
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM reconciliation_sessions WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *repository) List(ctx context.Context, companyID, bankAccountID int64) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM reconciliation_sessions
WHERE company_id=$1 AND ($2 = 0 OR bank_account_id = $2) ORDER BY statement_end DESC, id DESC`, companyID, bankAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) Items(ctx context.Context, sessionID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT session_id, bank_transaction_id, cleared, updated_at
FROM reconciliation_items WHERE session_id=$1 ORDER BY bank_transaction_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.SessionID, &it.BankTransactionID, &it.Cleared, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *repository) ClearedAmounts(ctx context.Context, sessionID int64) ([]shared.Amount, error) {
	return clearedAmounts(ctx, r.pool, sessionID)
}

func clearedAmounts(ctx context.Context, q db.DBTX, sessionID int64) ([]shared.Amount, error) {
	rows, err := q.Query(ctx, `SELECT t.amount FROM reconciliation_items i
JOIN bank_transactions t ON t.id = i.bank_transaction_id
WHERE i.session_id=$1 AND i.cleared`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []shared.Amount
	for rows.Next() {
		var a shared.Amount
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type txRepository struct {
	q db.DBTX
}

func (t *txRepository) LockBankAccount(ctx context.Context, companyID, bankAccountID int64) error {
	var id int64
	err := t.q.QueryRow(ctx, `SELECT id FROM bank_accounts WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, bankAccountID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: bank account", shared.ErrNotFound)
	}
	return err
}

func (t *txRepository) HasOpenSession(ctx context.Context, companyID, bankAccountID int64) (bool, error) {
	var open bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reconciliation_sessions
WHERE company_id=$1 AND bank_account_id=$2 AND status='in_progress')`, companyID, bankAccountID).Scan(&open)
	return open, err
}

func (t *txRepository) PreviousEnding(ctx context.Context, companyID, bankAccountID int64) (shared.Amount, bool, error) {
	var ending shared.Amount
	err := t.q.QueryRow(ctx, `SELECT statement_ending_balance FROM reconciliation_sessions
WHERE company_id=$1 AND bank_account_id=$2 AND status='completed'
ORDER BY statement_end DESC, id DESC LIMIT 1`, companyID, bankAccountID).Scan(&ending)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	return ending, err == nil, err
}

func (t *txRepository) Insert(ctx context.Context, s Session) (Session, error) {
	return scanSession(t.q.QueryRow(ctx, `INSERT INTO reconciliation_sessions
(company_id, bank_account_id, statement_start, statement_end, statement_ending_balance, opening_balance, status)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+sessionColumns,
		s.CompanyID, s.BankAccountID, s.StatementStart, s.StatementEnd, s.StatementEndingBalance, s.OpeningBalance, s.Status))
}

func (t *txRepository) GetForUpdate(ctx context.Context, companyID, id int64) (Session, error) {
	return scanSession(t.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM reconciliation_sessions WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
}

func (t *txRepository) LockTransaction(ctx context.Context, companyID, id int64) (banking.Transaction, error) {
	return banking.ScanTransaction(t.q.QueryRow(ctx, `SELECT `+banking.TransactionColumns+` FROM bank_transactions
WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
}

func (t *txRepository) UpsertItem(ctx context.Context, item Item) (Item, error) {
	err := t.q.QueryRow(ctx, `INSERT INTO reconciliation_items (session_id, bank_transaction_id, cleared, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (session_id, bank_transaction_id) DO UPDATE SET cleared=EXCLUDED.cleared, updated_at=NOW()
RETURNING updated_at`, item.SessionID, item.BankTransactionID, item.Cleared).Scan(&item.UpdatedAt)
	return item, err
}

func (t *txRepository) ClearedTransactions(ctx context.Context, sessionID int64) ([]banking.Transaction, error) {
	rows, err := t.q.Query(ctx, `SELECT `+prefixed("t.", banking.TransactionColumns)+` FROM reconciliation_items i
JOIN bank_transactions t ON t.id = i.bank_transaction_id
WHERE i.session_id=$1 AND i.cleared ORDER BY t.id FOR UPDATE OF t`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []banking.Transaction
	for rows.Next() {
		tx, err := banking.ScanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (t *txRepository) StampReconciled(ctx context.Context, sessionID int64, transactionIDs []int64) error {
	if len(transactionIDs) == 0 {
		return nil
	}
	_, err := t.q.Exec(ctx, `UPDATE bank_transactions SET reconciled_session_id=$1 WHERE id = ANY($2)`, sessionID, transactionIDs)
	return err
}

func (t *txRepository) MarkCompleted(ctx context.Context, s Session) (Session, error) {
	return scanSession(t.q.QueryRow(ctx, `UPDATE reconciliation_sessions SET status=$3, completed_at=$4, completed_by=$5
WHERE company_id=$1 AND id=$2 RETURNING `+sessionColumns, s.CompanyID, s.ID, s.Status, s.CompletedAt, s.CompletedBy))
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
