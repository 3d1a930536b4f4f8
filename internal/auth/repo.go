package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	CreateCompany(ctx context.Context, name string) (Company, error)
	GetCompany(ctx context.Context, id int64) (Company, error)
	InsertKey(ctx context.Context, key APIKey) (APIKey, error)
	FindKey(ctx context.Context, id uuid.UUID) (APIKey, error)
	RevokeKey(ctx context.Context, companyID int64, id uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateCompany(ctx context.Context, name string) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `INSERT INTO companies (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	return c, err
}

func (r *PGRepository) GetCompany(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM companies WHERE id=$1`, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, fmt.Errorf("%w: company", shared.ErrNotFound)
	}
	return c, err
}

func (r *PGRepository) InsertKey(ctx context.Context, key APIKey) (APIKey, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO api_keys (id, company_id, label, secret_hash) VALUES ($1,$2,$3,$4)
RETURNING created_at`, key.ID, key.CompanyID, key.Label, key.SecretHash).Scan(&key.CreatedAt)
	return key, err
}

// FindKey fetches a key by id regardless of company; the caller proves
// ownership with the secret.
func (r *PGRepository) FindKey(ctx context.Context, id uuid.UUID) (APIKey, error) {
	var k APIKey
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, label, secret_hash, revoked_at, created_at FROM api_keys WHERE id=$1`, id).
		Scan(&k.ID, &k.CompanyID, &k.Label, &k.SecretHash, &k.RevokedAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return APIKey{}, fmt.Errorf("%w: api key", shared.ErrNotFound)
	}
	return k, err
}

func (r *PGRepository) RevokeKey(ctx context.Context, companyID int64, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE api_keys SET revoked_at=NOW() WHERE company_id=$1 AND id=$2 AND revoked_at IS NULL`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: api key", shared.ErrNotFound)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
