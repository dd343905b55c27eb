package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.db")
	database, err := Connect(path)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer database.Close()

	if err := RunMigrations(database); err != nil {
		t.Fatalf("RunMigrations() first run: %v", err)
	}
	// Second run must be a no-op, not an error.
	if err := RunMigrations(database); err != nil {
		t.Fatalf("RunMigrations() second run: %v", err)
	}

	version, dirty, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error: %v", err)
	}
	if dirty {
		t.Error("database left dirty after migrations")
	}
	if version != 2 {
		t.Errorf("migration version = %d, want 2", version)
	}

	// Schema from versioned migrations matches the embedded fallback: the
	// user_display column from 000002 must be present.
	got, err := columnExists(context.Background(), database, "attendance", "user_display")
	if err != nil {
		t.Fatalf("columnExists error: %v", err)
	}
	if !got {
		t.Error("expected user_display column after versioned migrations")
	}
}

func TestMigrateDownRollsBackOneStep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.db")
	database, err := Connect(path)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer database.Close()

	if err := RunMigrations(database); err != nil {
		t.Fatalf("RunMigrations() error: %v", err)
	}
	if err := MigrateDown(database); err != nil {
		t.Fatalf("MigrateDown() error: %v", err)
	}

	version, _, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error: %v", err)
	}
	if version != 1 {
		t.Errorf("migration version after rollback = %d, want 1", version)
	}
}
