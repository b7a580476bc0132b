package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	sqlitedriver "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// Status describes the schema version recorded in schema_migrations.
type Status struct {
	Version uint
	Dirty   bool
	Applied bool
}

// Run applies every pending embedded migration. It returns the schema
// version after the run. Running against an up-to-date database is a no-op.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) (Status, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m, closeSource, err := newMigrator(db, logger)
	if err != nil {
		return Status{}, err
	}
	defer closeSource()

	before, err := version(m)
	if err != nil {
		return Status{}, err
	}
	if before.Dirty {
		return before, NewMigrationError(before.Version, "up", ErrDirtyDatabase)
	}

	done := make(chan error, 1)
	go func() { done <- m.Up() }()

	select {
	case <-ctx.Done():
		m.GracefulStop <- true
		<-done
		return Status{}, NewMigrationError(before.Version, "up", ctx.Err())
	case err = <-done:
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return Status{}, NewMigrationError(before.Version, "up", err)
	}

	after, err := version(m)
	if err != nil {
		return Status{}, err
	}
	if after.Version != before.Version {
		logger.Info("schema migrated", "from_version", before.Version, "to_version", after.Version)
	} else {
		logger.Debug("schema up to date", "version", after.Version)
	}
	return after, nil
}

// CurrentStatus reports the recorded schema version without migrating.
func CurrentStatus(db *sql.DB) (Status, error) {
	m, closeSource, err := newMigrator(db, nil)
	if err != nil {
		return Status{}, err
	}
	defer closeSource()
	return version(m)
}

func newMigrator(db *sql.DB, logger *slog.Logger) (*migrate.Migrate, func(), error) {
	source, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlitedriver.WithInstance(db, &sqlitedriver.Config{MigrationsTable: migrationsTable})
	if err != nil {
		source.Close()
		return nil, nil, fmt.Errorf("failed to initialise migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, DriverName, driver)
	if err != nil {
		source.Close()
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	if logger != nil {
		m.Log = migrateLogger{logger: logger}
	}

	// m.Close would also close db, which the caller owns.
	return m, func() { _ = source.Close() }, nil
}

func version(m *migrate.Migrate) (Status, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to read schema version: %w", err)
	}
	return Status{Version: v, Dirty: dirty, Applied: true}, nil
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return false
}
