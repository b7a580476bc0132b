package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrDirtyDatabase indicates a previous migration failed midway and
	// the schema needs manual repair before further migrations run.
	ErrDirtyDatabase = errors.New("migration: database is dirty")
)

// MigrationError wraps migration-specific errors with additional context
type MigrationError struct {
	Version   uint   // Schema version when the failure happened
	Operation string // Operation being performed (up, version)
	Err       error  // Underlying error
}

// Error implements the error interface
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s at version %d: %v", e.Operation, e.Version, e.Err)
}

// Unwrap returns the underlying error for error unwrapping
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// NewMigrationError creates a new MigrationError with context
func NewMigrationError(version uint, operation string, err error) *MigrationError {
	return &MigrationError{
		Version:   version,
		Operation: operation,
		Err:       err,
	}
}
