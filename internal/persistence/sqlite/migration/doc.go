// Package migration opens SQLite connections and applies the booking schema.
//
// Schema files live in sql/ and follow golang-migrate naming:
// {version}_{description}.up.sql with a matching .down.sql. They are
// embedded into the binary and applied through the migrate sqlite driver,
// which records progress in the schema_migrations table.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig("booking.db"))
//	if err != nil {
//		return err
//	}
//	if _, err := migration.Run(ctx, db.DB, logger); err != nil {
//		return err
//	}
package migration
