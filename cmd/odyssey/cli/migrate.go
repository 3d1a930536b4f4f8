package cli

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/migrations"
)

// MigrateFunc applies migrations in one direction; it matches db.Migrate
// bound to the embedded schema.
type MigrateFunc func(dsn string, direction db.MigrateDirection) (bool, error)

// EmbeddedMigrations runs the schema compiled into the binary.
func EmbeddedMigrations(dsn string, direction db.MigrateDirection) (bool, error) {
	return db.Migrate(dsn, migrations.FS, direction)
}

// MigrateCommand runs migrate up or down and reports whether anything changed.
func MigrateCommand(run MigrateFunc, dsn, direction string, out Output) int {
	out.defaults()
	dir := db.MigrateDirection(direction)
	if dir != db.MigrateUp && dir != db.MigrateDown {
		_, _ = fmt.Fprintf(out.Stderr, "migrate: unknown direction %q (expected up or down)\n", direction)
		return 2
	}
	changed, err := run(dsn, dir)
	if err != nil {
		_, _ = fmt.Fprintf(out.Stderr, "migrate %s: %v\n", dir, err)
		return 1
	}
	if !changed {
		_, _ = fmt.Fprintf(out.Stdout, "migrate %s: no change\n", dir)
		return 0
	}
	_, _ = fmt.Fprintf(out.Stdout, "migrate %s: applied\n", dir)
	return 0
}
