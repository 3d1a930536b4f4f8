package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/contacts"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository encapsulates document persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Document, error)
	List(ctx context.Context, companyID int64, filter ListFilter) ([]Document, int, error)
	OpenItems(ctx context.Context, companyID int64, kind Kind) ([]OpenItem, error)
}

// TxRepository exposes the operations available within a transaction.
type TxRepository interface {
	// Querier is handed to the journal engine so it posts in the same transaction.
	Querier() db.DBTX
	NextNumber(ctx context.Context, companyID int64, kind Kind) (string, error)
	ContactSummary(ctx context.Context, companyID, contactID int64) (contacts.Summary, error)
	LookupAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error)
	Insert(ctx context.Context, doc Document) (Document, error)
	InsertLines(ctx context.Context, documentID int64, lines []Line) ([]Line, error)
	GetForUpdate(ctx context.Context, companyID, id int64) (Document, error)
	Update(ctx context.Context, doc Document) (Document, error)
}

// OpenItem is an unpaid posted document considered by aging.
type OpenItem struct {
	DocumentID int64         `json:"document_id"`
	Number     string        `json:"doc_number"`
	ContactID  int64         `json:"contact_id"`
	DueDate    shared.Date   `json:"due_date"`
	BalanceDue shared.Amount `json:"balance_due"`
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

const documentColumns = `id, company_id, kind, contact_id, doc_number, issue_date, due_date, memo,
subtotal, tax_total, total, amount_paid, balance_due, status, control_account_id, journal_entry_id, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.CompanyID, &d.Kind, &d.ContactID, &d.Number, &d.IssueDate, &d.DueDate, &d.Memo,
		&d.Subtotal, &d.TaxTotal, &d.Total, &d.AmountPaid, &d.BalanceDue, &d.Status, &d.ControlAccountID, &d.JournalEntryID,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: document", shared.ErrNotFound)
	}
	return d, err
}

func loadLines(ctx context.Context, q db.DBTX, documentID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, document_id, line_no, description, quantity, unit_price, amount, account_id
FROM document_lines WHERE document_id=$1 ORDER BY line_no`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.LineNo, &l.Description, &l.Quantity, &l.UnitPrice, &l.Amount, &l.AccountID); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func contactSummary(ctx context.Context, q db.DBTX, companyID, contactID int64) (contacts.Summary, error) {
	var s contacts.Summary
	err := q.QueryRow(ctx, `SELECT id, contact_type, display_name, email FROM contacts WHERE company_id=$1 AND id=$2`,
		companyID, contactID).Scan(&s.ID, &s.Type, &s.DisplayName, &s.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return contacts.Summary{}, fmt.Errorf("%w: contact", shared.ErrNotFound)
	}
	return s, err
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Document, error) {
	doc, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		return Document{}, err
	}
	if doc.Lines, err = loadLines(ctx, r.pool, doc.ID); err != nil {
		return Document{}, err
	}
	summary, err := contactSummary(ctx, r.pool, companyID, doc.ContactID)
	if err != nil {
		return Document{}, err
	}
	doc.Contact = &summary
	return doc, nil
}

func (r *repository) List(ctx context.Context, companyID int64, filter ListFilter) ([]Document, int, error) {
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	where := `WHERE company_id=$1 AND ($2 = '' OR kind = $2) AND ($3 = '' OR status = $3) AND ($4 = 0 OR contact_id = $4)`
	args := []any{companyID, string(filter.Kind), string(filter.Status), filter.ContactID}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents `+where+`
ORDER BY issue_date DESC, id DESC LIMIT $5 OFFSET $6`, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, doc)
	}
	return out, total, rows.Err()
}

func (r *repository) OpenItems(ctx context.Context, companyID int64, kind Kind) ([]OpenItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, doc_number, contact_id, due_date, balance_due FROM documents
WHERE company_id=$1 AND kind=$2 AND status IN ('posted','partial') AND balance_due > 0
ORDER BY due_date, id`, companyID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpenItem
	for rows.Next() {
		var item OpenItem
		if err := rows.Scan(&item.DocumentID, &item.Number, &item.ContactID, &item.DueDate, &item.BalanceDue); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type txRepository struct {
	q db.DBTX
}

func (t *txRepository) Querier() db.DBTX { return t.q }

func (t *txRepository) NextNumber(ctx context.Context, companyID int64, kind Kind) (string, error) {
	seq, err := db.NextSequence(ctx, t.q, companyID, kind.Prefix())
	if err != nil {
		return "", err
	}
	return db.FormatNumber(kind.Prefix(), seq, numberWidth), nil
}

func (t *txRepository) ContactSummary(ctx context.Context, companyID, contactID int64) (contacts.Summary, error) {
	return contactSummary(ctx, t.q, companyID, contactID)
}

func (t *txRepository) LookupAccounts(ctx context.Context, companyID int64, ids []int64) (map[int64]accounts.PostingTarget, error) {
	return accounts.LookupForDraft(ctx, t.q, companyID, ids)
}

func (t *txRepository) Insert(ctx context.Context, doc Document) (Document, error) {
	out, err := scanDocument(t.q.QueryRow(ctx, `INSERT INTO documents
(company_id, kind, contact_id, doc_number, issue_date, due_date, memo, subtotal, tax_total, total, amount_paid, balance_due, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING `+documentColumns,
		doc.CompanyID, doc.Kind, doc.ContactID, doc.Number, doc.IssueDate, doc.DueDate, doc.Memo,
		doc.Subtotal, doc.TaxTotal, doc.Total, doc.AmountPaid, doc.BalanceDue, doc.Status))
	if err != nil && db.IsUniqueViolation(err, "uq_documents_number") {
		return Document{}, fmt.Errorf("%w: %s", shared.ErrDuplicateCode, doc.Number)
	}
	return out, err
}

func (t *txRepository) InsertLines(ctx context.Context, documentID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		l.DocumentID = documentID
		err := t.q.QueryRow(ctx, `INSERT INTO document_lines (document_id, line_no, description, quantity, unit_price, amount, account_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			documentID, l.LineNo, l.Description, l.Quantity, l.UnitPrice, l.Amount, l.AccountID).Scan(&l.ID)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return nil, fmt.Errorf("%w: line %d account %d", shared.ErrInvalidLine, l.LineNo, l.AccountID)
			}
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, companyID, id int64) (Document, error) {
	doc, err := LockForApplication(ctx, t.q, companyID, id)
	if err != nil {
		return Document{}, err
	}
	if doc.Lines, err = loadLines(ctx, t.q, doc.ID); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (t *txRepository) Update(ctx context.Context, doc Document) (Document, error) {
	return SaveBalances(ctx, t.q, doc)
}

// LockForApplication row-locks a document inside the caller's transaction.
func LockForApplication(ctx context.Context, q db.DBTX, companyID, id int64) (Document, error) {
	return scanDocument(q.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
}

// SaveBalances persists the mutable fields of a locked document: status,
// memo, paid and due amounts and the ledger links.
func SaveBalances(ctx context.Context, q db.DBTX, doc Document) (Document, error) {
	lines, summary := doc.Lines, doc.Contact
	out, err := scanDocument(q.QueryRow(ctx, `UPDATE documents SET status=$3, memo=$4, amount_paid=$5, balance_due=$6,
control_account_id=$7, journal_entry_id=$8, updated_at=NOW()
WHERE company_id=$1 AND id=$2 RETURNING `+documentColumns,
		doc.CompanyID, doc.ID, doc.Status, doc.Memo, doc.AmountPaid, doc.BalanceDue, doc.ControlAccountID, doc.JournalEntryID))
	if err != nil {
		return Document{}, err
	}
	out.Lines, out.Contact = lines, summary
	return out, nil
}
