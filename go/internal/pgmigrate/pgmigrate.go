// Package pgmigrate applies the SQL files under migrations/ with
// golang-migrate/migrate, the way SPEC_FULL's ambient stack calls for
// database schema changes to be versioned rather than hand-run.
package pgmigrate

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Up applies every pending migration found at migrationsDir against dsn.
func Up(dsn, migrationsDir string) error {
	return run(dsn, migrationsDir, func(m *migrate.Migrate) error { return m.Up() })
}

// Down rolls back every applied migration found at migrationsDir.
func Down(dsn, migrationsDir string) error {
	return run(dsn, migrationsDir, func(m *migrate.Migrate) error { return m.Down() })
}

func run(dsn, migrationsDir string, step func(*migrate.Migrate) error) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("pgmigrate: open: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("pgmigrate: postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("pgmigrate: new migrate instance: %w", err)
	}
	defer m.Close()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pgmigrate: %w", err)
	}
	return nil
}
