package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/cosconsole/migrations"
)

// Database dialects with a settings backend. Each names its directory in
// the embedded migrations.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

var sqlDrivers = map[string]string{
	DialectPostgres: "pgx",
	DialectSQLite:   "sqlite",
}

// Migrations returns the embedded migration set for dialect.
func Migrations(dialect string) (fs.FS, error) {
	if _, ok := sqlDrivers[dialect]; !ok {
		return nil, fmt.Errorf("store: unknown dialect %q", dialect)
	}
	return fs.Sub(migrations.FS, dialect)
}

// Migrate applies every pending up migration in source to db and returns the
// resulting schema version. A nil source uses the embedded set for dialect.
func Migrate(db *sql.DB, dialect string, source fs.FS) (uint, error) {
	if source == nil {
		var err error
		if source, err = Migrations(dialect); err != nil {
			return 0, err
		}
	}

	sourceDriver, err := iofs.New(source, ".")
	if err != nil {
		return 0, fmt.Errorf("store: read migrations: %w", err)
	}

	var dbDriver database.Driver
	switch dialect {
	case DialectPostgres:
		dbDriver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	case DialectSQLite:
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return 0, fmt.Errorf("store: unknown dialect %q", dialect)
	}
	if err != nil {
		return 0, fmt.Errorf("store: %s migration driver: %w", dialect, err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dialect, dbDriver)
	if err != nil {
		return 0, fmt.Errorf("store: migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("store: apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("store: schema version %d is dirty", version)
	}
	slog.Info("store: schema up to date", "dialect", dialect, "version", version)
	return version, nil
}

// MigrateDSN connects to dsn with the driver for dialect, applies source
// (nil for the embedded set) and disconnects.
func MigrateDSN(ctx context.Context, dialect, dsn string, source fs.FS) (uint, error) {
	driver, ok := sqlDrivers[dialect]
	if !ok {
		return 0, fmt.Errorf("store: unknown dialect %q", dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return 0, fmt.Errorf("store: open %s: %w", dialect, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return 0, fmt.Errorf("store: ping %s: %w", dialect, err)
	}
	return Migrate(db, dialect, source)
}
