package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/contacts"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository encapsulates payment persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Payment, error)
	List(ctx context.Context, companyID int64, filter ListFilter) ([]Payment, int, error)
}

// TxRepository exposes the operations available within a transaction.
// Payments are locked before documents.
type TxRepository interface {
	Querier() db.DBTX
	ContactType(ctx context.Context, companyID, contactID int64) (contacts.Type, error)
	LookupAccount(ctx context.Context, companyID, accountID int64) (accounts.PostingTarget, bool, error)
	Insert(ctx context.Context, p Payment) (Payment, error)
	GetForUpdate(ctx context.Context, companyID, id int64) (Payment, error)
	Update(ctx context.Context, p Payment) (Payment, error)
	LockDocument(ctx context.Context, companyID, id int64) (documents.Document, error)
	SaveDocument(ctx context.Context, doc documents.Document) (documents.Document, error)
	InsertApplication(ctx context.Context, app Application) (Application, error)
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

const paymentColumns = `id, company_id, kind, contact_id, payment_date, amount, amount_applied, settlement_account_id, memo, status, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.CompanyID, &p.Kind, &p.ContactID, &p.PaymentDate, &p.Amount, &p.AmountApplied,
		&p.SettlementAccountID, &p.Memo, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, fmt.Errorf("%w: payment", shared.ErrNotFound)
	}
	return p, err
}

func loadApplications(ctx context.Context, q db.DBTX, paymentID int64) ([]Application, error) {
	rows, err := q.Query(ctx, `SELECT id, payment_id, document_id, amount_applied, journal_entry_id, created_at
FROM payment_applications WHERE payment_id=$1 ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.DocumentID, &a.AmountApplied, &a.JournalEntryID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		return Payment{}, err
	}
	p.Applications, err = loadApplications(ctx, r.pool, p.ID)
	return p, err
}

func (r *repository) List(ctx context.Context, companyID int64, filter ListFilter) ([]Payment, int, error) {
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	where := `WHERE company_id=$1 AND ($2 = '' OR kind = $2) AND ($3 = '' OR status = $3) AND ($4 = 0 OR contact_id = $4)`
	args := []any{companyID, string(filter.Kind), string(filter.Status), filter.ContactID}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments `+where+`
ORDER BY payment_date DESC, id DESC LIMIT $5 OFFSET $6`, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

type txRepository struct {
	q db.DBTX
}

func (t *txRepository) Querier() db.DBTX { return t.q }

func (t *txRepository) ContactType(ctx context.Context, companyID, contactID int64) (contacts.Type, error) {
	var typ contacts.Type
	err := t.q.QueryRow(ctx, `SELECT contact_type FROM contacts WHERE company_id=$1 AND id=$2`, companyID, contactID).Scan(&typ)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: contact", shared.ErrNotFound)
	}
	return typ, err
}

func (t *txRepository) LookupAccount(ctx context.Context, companyID, accountID int64) (accounts.PostingTarget, bool, error) {
	found, err := accounts.LookupForDraft(ctx, t.q, companyID, []int64{accountID})
	if err != nil {
		return accounts.PostingTarget{}, false, err
	}
	target, ok := found[accountID]
	return target, ok, nil
}

func (t *txRepository) Insert(ctx context.Context, p Payment) (Payment, error) {
	return scanPayment(t.q.QueryRow(ctx, `INSERT INTO payments
(company_id, kind, contact_id, payment_date, amount, amount_applied, settlement_account_id, memo, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING `+paymentColumns,
		p.CompanyID, p.Kind, p.ContactID, p.PaymentDate, p.Amount, p.AmountApplied, p.SettlementAccountID, p.Memo, p.Status))
}

func (t *txRepository) GetForUpdate(ctx context.Context, companyID, id int64) (Payment, error) {
	p, err := scanPayment(t.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		return Payment{}, err
	}
	p.Applications, err = loadApplications(ctx, t.q, p.ID)
	return p, err
}

func (t *txRepository) Update(ctx context.Context, p Payment) (Payment, error) {
	apps := p.Applications
	out, err := scanPayment(t.q.QueryRow(ctx, `UPDATE payments SET amount_applied=$3, status=$4, memo=$5, updated_at=NOW()
WHERE company_id=$1 AND id=$2 RETURNING `+paymentColumns, p.CompanyID, p.ID, p.AmountApplied, p.Status, p.Memo))
	if err != nil {
		return Payment{}, err
	}
	out.Applications = apps
	return out, nil
}

func (t *txRepository) LockDocument(ctx context.Context, companyID, id int64) (documents.Document, error) {
	return documents.LockForApplication(ctx, t.q, companyID, id)
}

func (t *txRepository) SaveDocument(ctx context.Context, doc documents.Document) (documents.Document, error) {
	return documents.SaveBalances(ctx, t.q, doc)
}

func (t *txRepository) InsertApplication(ctx context.Context, app Application) (Application, error) {
	err := t.q.QueryRow(ctx, `INSERT INTO payment_applications (payment_id, document_id, amount_applied, journal_entry_id)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`, app.PaymentID, app.DocumentID, app.AmountApplied, app.JournalEntryID).Scan(&app.ID, &app.CreatedAt)
	return app, err
}
