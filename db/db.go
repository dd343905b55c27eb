// Package db provides database connection helpers and schema migration for the
// local SQLite attendance store.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver registered as 'sqlite'
)

// Connect opens the SQLite database at path, creating the file if absent.
// The pool is capped at a single connection: SQLite serializes writers anyway,
// and one connection keeps lock contention out of the driver layer.
func Connect(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(1)
	return database, nil
}

// Migrate applies idempotent schema changes for the attendance table and its
// covering index. It is the embedded fallback for deployments without the
// versioned migrations directory, and is safe to run repeatedly.
func Migrate(ctx context.Context, database *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS attendance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_utc TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			voice_channel_id TEXT NOT NULL,
			marker_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			user_display TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_lookup
			ON attendance (guild_id, voice_channel_id, ts_utc, user_id)`,
	}
	for i, s := range stmts {
		if _, err := database.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("sqlite migrate step %d failed: %w", i, err)
		}
	}

	// Additive migration for databases created before user_display existed.
	// SQLite has no ADD COLUMN IF NOT EXISTS, so inspect the table first.
	hasDisplay, err := columnExists(ctx, database, "attendance", "user_display")
	if err != nil {
		return fmt.Errorf("inspect attendance schema: %w", err)
	}
	if !hasDisplay {
		if _, err := database.ExecContext(ctx, `ALTER TABLE attendance ADD COLUMN user_display TEXT`); err != nil {
			return fmt.Errorf("add user_display column: %w", err)
		}
	}
	return nil
}

func columnExists(ctx context.Context, database *sql.DB, table, column string) (bool, error) {
	rows, err := database.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
