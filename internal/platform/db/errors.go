package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Postgres SQLSTATE codes the ledger reacts to.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeLockNotAvailable    = "55P03"
	CodeSerialization       = "40001"
	CodeDeadlock            = "40P01"
)

// MapError translates lock and serialization failures into
// shared.ErrConcurrentModification, leaving other errors untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrConcurrentModification) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeLockNotAvailable, CodeSerialization, CodeDeadlock:
			return fmt.Errorf("%w: %s", shared.ErrConcurrentModification, pgErr.Message)
		}
	}
	return err
}

// IsUniqueViolation reports whether err is a unique violation, optionally on
// the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == CodeForeignKeyViolation
}
