// Package testutil provides shared test helpers: a migrated throwaway sqlite
// database and fakes for the bot's capability interfaces.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/onnwee/voicemark/db"
)

// NewTestDB opens a fresh sqlite database in a temp directory and applies the
// embedded schema migration. The database is closed when the test finishes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attendance.db")
	database, err := db.Connect(path)
	if err != nil {
		t.Fatalf("testutil: connect sqlite: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("testutil: close sqlite: %v", err)
		}
	})
	if err := db.Migrate(context.Background(), database); err != nil {
		t.Fatalf("testutil: migrate sqlite: %v", err)
	}
	return database
}
