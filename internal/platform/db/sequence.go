package db

import (
	"context"
	"fmt"
)

// NextSequence atomically increments and returns the per-company counter for
// docType. The first call for a company yields 1.
func NextSequence(ctx context.Context, q DBTX, companyID int64, docType string) (int64, error) {
	var seq int64
	err := q.QueryRow(ctx, `
		INSERT INTO document_sequences (company_id, doc_type, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (company_id, doc_type)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, companyID, docType).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("platform/db: next sequence %s: %w", docType, err)
	}
	return seq, nil
}

// FormatNumber renders a human readable document number such as INV-001.
func FormatNumber(prefix string, seq int64, width int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, seq)
}
