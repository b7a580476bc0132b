package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/room-booking/internal/persistence/sqlite"
)

// SQLiteHarness is a migrated SQLite store in a temporary directory.
type SQLiteHarness struct {
	Storage *sqlite.Storage
	Path    string
}

// NewSQLiteHarness opens and migrates a fresh database file. It is closed
// through tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	storage, err := sqlite.OpenPath(path, nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	tb.Cleanup(func() { _ = storage.Close() })
	return &SQLiteHarness{Storage: storage, Path: path}
}

// NewSeededSQLiteHarness is NewSQLiteHarness with Users and Rooms inserted.
func NewSeededSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()
	h := NewSQLiteHarness(tb)
	Seed(tb, h.Storage)
	return h
}
