package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*UserRepository
	*RoomRepository
	*BookingRepository
	*InvitationRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database described by config. Call Migrate before
// using the repositories against a fresh database.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		UserRepository:       NewUserRepository(pool),
		RoomRepository:       NewRoomRepository(pool),
		BookingRepository:    NewBookingRepository(pool),
		InvitationRepository: NewInvitationRepository(pool),
		pool:                 pool,
		logger:               logger.With("component", "sqlite"),
	}, nil
}

// OpenPath opens a file database with the default configuration.
func OpenPath(path string, logger *slog.Logger) (*Storage, error) {
	return Open(migration.DefaultSQLiteConfig(path), logger)
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	status, err := migration.Run(ctx, s.pool.DB().DB, s.logger)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	s.logger.Debug("schema ready", "version", status.Version)
	return nil
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// repository holds what every SQLite repository shares.
type repository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

func newRepository(pool *ConnectionPool) repository {
	return repository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// write runs fn in a transaction, retrying when SQLite reports the
// database as busy.
func (r repository) write(ctx context.Context, fn TransactionFunc) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, fn)
	})
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(result interface{ RowsAffected() (int64, error) }, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

var (
	_ persistence.UserRepository       = (*UserRepository)(nil)
	_ persistence.RoomRepository       = (*RoomRepository)(nil)
	_ persistence.BookingRepository    = (*BookingRepository)(nil)
	_ persistence.InvitationRepository = (*InvitationRepository)(nil)
)
