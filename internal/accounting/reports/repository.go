package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository reads posted ledger activity.
type Repository interface {
	// Balances returns every account of the company with the debit and credit
	// totals of posted lines dated within [from, to]. A nil from means since
	// inception.
	Balances(ctx context.Context, companyID int64, from *shared.Date, to shared.Date) ([]AccountBalance, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Balances(ctx context.Context, companyID int64, from *shared.Date, to shared.Date) ([]AccountBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.type, a.subtype,
       COALESCE(t.debit, 0)::bigint, COALESCE(t.credit, 0)::bigint
FROM accounts a
LEFT JOIN (
    SELECT l.account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
    FROM journal_lines l
    JOIN journal_entries e ON e.id = l.journal_id
    WHERE e.company_id = $1 AND e.status = 'posted'
      AND e.entry_date <= $3 AND ($2::date IS NULL OR e.entry_date >= $2)
    GROUP BY l.account_id
) t ON t.account_id = a.id
WHERE a.company_id = $1
ORDER BY a.code`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Code, &b.Name, &b.Type, &b.Subtype, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
