package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository interface {
	// Window returns up to limit rows after skipping offset, newest first.
	Window(ctx context.Context, f Filters, offset, limit int) ([]Row, error)
	All(ctx context.Context, f Filters) ([]Row, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const timelineQuery = `SELECT id, occurred_at, actor, action, entity, entity_id, meta
FROM audit_logs
WHERE company_id = $1
  AND occurred_at >= $2 AND occurred_at < $3
  AND ($4 = '' OR actor = $4)
  AND ($5 = '' OR entity = $5)
  AND ($6 = '' OR entity_id = $6)
  AND ($7 = '' OR action = $7)
ORDER BY occurred_at DESC, id DESC`

func timelineArgs(f Filters) []any {
	return []any{
		f.CompanyID,
		f.From,
		f.To.Add(24 * time.Hour),
		strings.TrimSpace(f.Actor),
		strings.TrimSpace(f.Entity),
		strings.TrimSpace(f.EntityID),
		strings.TrimSpace(f.Action),
	}
}

func (r *repository) Window(ctx context.Context, f Filters, offset, limit int) ([]Row, error) {
	rows, err := r.pool.Query(ctx, timelineQuery+` LIMIT $8 OFFSET $9`, append(timelineArgs(f), limit, offset)...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repository) All(ctx context.Context, f Filters) ([]Row, error) {
	rows, err := r.pool.Query(ctx, timelineQuery, timelineArgs(f)...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var (
			row  Row
			meta []byte
		)
		if err := rows.Scan(&row.ID, &row.At, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
