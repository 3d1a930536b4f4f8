package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// MigrateDirection selects which way migrations run.
type MigrateDirection string

const (
	MigrateUp   MigrateDirection = "up"
	MigrateDown MigrateDirection = "down"
)

// Migrate applies the embedded migrations in the requested direction.
// It returns false when the schema was already current.
func Migrate(dsn string, migrations fs.FS, direction MigrateDirection) (bool, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return false, fmt.Errorf("platform/db: open migration conn: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if err := conn.Ping(); err != nil {
		return false, fmt.Errorf("platform/db: ping migration conn: %w", err)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		return false, fmt.Errorf("platform/db: migration driver: %w", err)
	}
	source, err := iofs.New(migrations, ".")
	if err != nil {
		return false, fmt.Errorf("platform/db: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return false, fmt.Errorf("platform/db: migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case MigrateUp:
		err = m.Up()
	case MigrateDown:
		err = m.Steps(-1)
	default:
		return false, fmt.Errorf("platform/db: unknown migrate direction %q", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform/db: migrate %s: %w", direction, err)
	}
	return true, nil
}
