package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/voicemark/attendance"
	"github.com/onnwee/voicemark/testutil"
)

func TestStoreAppendAndQueryWindow(t *testing.T) {
	store := attendance.NewStore(testutil.NewTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	events := []attendance.Event{
		{Timestamp: base, GuildID: "g1", VoiceChannelID: "v1", MarkerID: "m", UserID: "alice", UserDisplay: "Alice"},
		{Timestamp: base.Add(time.Hour), GuildID: "g1", VoiceChannelID: "v1", MarkerID: "m", UserID: "bob", UserDisplay: "Bob"},
		{Timestamp: base.Add(-48 * time.Hour), GuildID: "g1", VoiceChannelID: "v1", MarkerID: "m", UserID: "old", UserDisplay: "Old"},
		{Timestamp: base, GuildID: "g2", VoiceChannelID: "v1", MarkerID: "m", UserID: "other-guild"},
		{Timestamp: base, GuildID: "g1", VoiceChannelID: "v2", MarkerID: "m", UserID: "other-channel"},
	}
	for _, ev := range events {
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := store.QueryWindow(ctx, "g1", "v1", base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("QueryWindow returned %d events, want 2 (scope and window filtered)", len(got))
	}
	for _, ev := range got {
		if ev.GuildID != "g1" || ev.VoiceChannelID != "v1" {
			t.Errorf("event out of scope: %+v", ev)
		}
		if ev.Timestamp.Before(base.Add(-time.Hour)) {
			t.Errorf("event before window: %+v", ev)
		}
	}
}

func TestStoreWindowBoundaryIsInclusive(t *testing.T) {
	store := attendance.NewStore(testutil.NewTestDB(t))
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Append(ctx, attendance.Event{Timestamp: at, GuildID: "g", VoiceChannelID: "v", MarkerID: "m", UserID: "u"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := store.QueryWindow(ctx, "g", "v", at)
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("event exactly at window start not returned")
	}
}

func TestStoreAppendBatchCommitsAllRows(t *testing.T) {
	store := attendance.NewStore(testutil.NewTestDB(t))
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	batch := []attendance.Event{
		{Timestamp: ts, GuildID: "g", VoiceChannelID: "v", MarkerID: "m", UserID: "u1", UserDisplay: "One"},
		{Timestamp: ts, GuildID: "g", VoiceChannelID: "v", MarkerID: "m", UserID: "u2", UserDisplay: "Two"},
		{Timestamp: ts, GuildID: "g", VoiceChannelID: "v", MarkerID: "m", UserID: "u3", UserDisplay: "Three"},
	}
	if err := store.AppendBatch(ctx, batch); err != nil {
		t.Fatalf("AppendBatch: %v", err)
	}
	got, err := store.QueryWindow(ctx, "g", "v", ts.Add(-time.Minute))
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d rows, want 3", len(got))
	}
}

func TestStoreAppendBatchRollsBackOnFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	store := attendance.NewStore(database)
	ctx := context.Background()

	// Abort the insert for the second row so the batch fails mid-way.
	if _, err := database.ExecContext(ctx, `CREATE TRIGGER reject_u2 BEFORE INSERT ON attendance
		WHEN NEW.user_id = 'u2' BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	batch := []attendance.Event{
		{Timestamp: ts, GuildID: "g", VoiceChannelID: "v", MarkerID: "m", UserID: "u1"},
		{Timestamp: ts, GuildID: "g", VoiceChannelID: "v", MarkerID: "m", UserID: "u2"},
	}
	if err := store.AppendBatch(ctx, batch); err == nil {
		t.Fatal("AppendBatch succeeded, want mid-batch failure")
	}

	var n int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if n != 0 {
		t.Errorf("failed batch left %d rows behind, want 0", n)
	}
}

func TestStoreRepeatedMarksProduceMultipleRows(t *testing.T) {
	store := attendance.NewStore(testutil.NewTestDB(t))
	ctx := context.Background()

	// The lookup key is indexed but not unique: marking the same user twice
	// in the same instant is legitimate and yields two rows.
	ev := attendance.Event{
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		GuildID:   "g", VoiceChannelID: "v", MarkerID: "m", UserID: "u", UserDisplay: "U",
	}
	if err := store.Append(ctx, ev); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(ctx, ev); err != nil {
		t.Fatalf("Append duplicate: %v", err)
	}
	got, err := store.QueryWindow(ctx, "g", "v", ev.Timestamp.Add(-time.Minute))
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d rows, want 2", len(got))
	}
}
