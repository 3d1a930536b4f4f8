package accounts

import (
	"context"
	"fmt"
	"sort"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// PostingTarget is the slice of an account the journal engine needs while posting.
type PostingTarget struct {
	ID         int64
	Type       AccountType
	IsArchived bool
}

// LockForPosting row-locks the given accounts in ascending id order and returns
// the ones that exist in the company. Callers treat missing ids as invalid lines.
func LockForPosting(ctx context.Context, q db.DBTX, companyID int64, ids []int64) (map[int64]PostingTarget, error) {
	ids = uniqueSorted(ids)
	rows, err := q.Query(ctx, `SELECT id, type, is_archived FROM accounts
WHERE company_id=$1 AND id = ANY($2) ORDER BY id FOR UPDATE`, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]PostingTarget, len(ids))
	for rows.Next() {
		var t PostingTarget
		if err := rows.Scan(&t.ID, &t.Type, &t.IsArchived); err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

// LookupForDraft reads the given accounts without locking them.
func LookupForDraft(ctx context.Context, q db.DBTX, companyID int64, ids []int64) (map[int64]PostingTarget, error) {
	rows, err := q.Query(ctx, `SELECT id, type, is_archived FROM accounts WHERE company_id=$1 AND id = ANY($2)`, companyID, uniqueSorted(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]PostingTarget, len(ids))
	for rows.Next() {
		var t PostingTarget
		if err := rows.Scan(&t.ID, &t.Type, &t.IsArchived); err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

// ApplyDelta adds delta to the account's running balance. It is additive and
// carries no dedup; callers apply it exactly once per posted or voided line.
func ApplyDelta(ctx context.Context, q db.DBTX, companyID, accountID int64, delta shared.Amount) error {
	tag, err := q.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $3, updated_at = NOW()
WHERE company_id=$1 AND id=$2`, companyID, accountID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %d", shared.ErrNotFound, accountID)
	}
	return nil
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
