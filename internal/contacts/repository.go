package contacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, companyID, id int64) (Contact, error)
	List(ctx context.Context, req ListContactsRequest) ([]Contact, int, error)
	Create(ctx context.Context, c Contact) (Contact, error)
	Update(ctx context.Context, c Contact) (Contact, error)
	Delete(ctx context.Context, companyID, id int64) error
	HasReferences(ctx context.Context, companyID, id int64) (bool, error)
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

const contactColumns = `id, company_id, contact_type, display_name, legal_name, email, phone, address, created_at, updated_at`

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.CompanyID, &c.Type, &c.DisplayName, &c.LegalName, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, fmt.Errorf("%w: contact", shared.ErrNotFound)
	}
	return c, err
}

func (r *repository) Get(ctx context.Context, companyID, id int64) (Contact, error) {
	return scanContact(r.db.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE company_id=$1 AND id=$2`, companyID, id))
}

func (r *repository) List(ctx context.Context, req ListContactsRequest) ([]Contact, int, error) {
	where := `WHERE company_id=$1 AND ($2 = '' OR contact_type = $2 OR contact_type = 'both')
AND ($3 = '' OR display_name ILIKE '%' || $3 || '%')`
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM contacts `+where, req.CompanyID, string(req.Type), req.Search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+contactColumns+` FROM contacts `+where+` ORDER BY display_name, id LIMIT $4 OFFSET $5`,
		req.CompanyID, string(req.Type), req.Search, req.Limit, req.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Contact) (Contact, error) {
	return scanContact(r.db.QueryRow(ctx, `INSERT INTO contacts (company_id, contact_type, display_name, legal_name, email, phone, address)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+contactColumns, c.CompanyID, c.Type, c.DisplayName, c.LegalName, c.Email, c.Phone, c.Address))
}

func (r *repository) Update(ctx context.Context, c Contact) (Contact, error) {
	return scanContact(r.db.QueryRow(ctx, `UPDATE contacts SET contact_type=$3, display_name=$4, legal_name=$5, email=$6, phone=$7, address=$8, updated_at=NOW()
WHERE company_id=$1 AND id=$2 RETURNING `+contactColumns, c.CompanyID, c.ID, c.Type, c.DisplayName, c.LegalName, c.Email, c.Phone, c.Address))
}

func (r *repository) Delete(ctx context.Context, companyID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contacts WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: contact is referenced", shared.ErrHasTransactions)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: contact", shared.ErrNotFound)
	}
	return nil
}

func (r *repository) HasReferences(ctx context.Context, companyID, id int64) (bool, error) {
	var used bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE company_id=$1 AND contact_id=$2)
OR EXISTS(SELECT 1 FROM payments WHERE company_id=$1 AND contact_id=$2)`, companyID, id).Scan(&used)
	return used, err
}
