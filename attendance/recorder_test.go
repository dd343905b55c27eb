package attendance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/voicemark/attendance"
	"github.com/onnwee/voicemark/testutil"
)

const (
	cmdChannel  = "100"
	voiceChan   = "200"
	allowedRole = "300"
)

func validRequest() attendance.MarkRequest {
	return attendance.MarkRequest{
		GuildID:        "g1",
		ChannelID:      cmdChannel,
		InvokerID:      "marker-1",
		InvokerRoleIDs: []string{"999", allowedRole},
	}
}

func newRecorder(t *testing.T, occ attendance.OccupancyProvider) (*attendance.Recorder, *attendance.Store) {
	t.Helper()
	store := attendance.NewStore(testutil.NewTestDB(t))
	return attendance.NewRecorder(store, occ, cmdChannel, voiceChan, allowedRole), store
}

func countEvents(t *testing.T, store *attendance.Store) []attendance.Event {
	t.Helper()
	events, err := store.QueryWindow(context.Background(), "g1", voiceChan, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	return events
}

func TestMarkAllAppendsOneEventPerOccupant(t *testing.T) {
	occ := &testutil.FakeOccupancy{Occupants: []attendance.Occupant{
		{UserID: "u1", Display: "Alice"},
		{UserID: "u2", Display: "Bob"},
		{UserID: "u3", Display: "AttendanceBot", Bot: true},
		{UserID: "u4", Display: "Carol"},
	}}
	rec, store := newRecorder(t, occ)

	n, err := rec.MarkAll(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("MarkAll: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3 (bot excluded)", n)
	}

	events := countEvents(t, store)
	if len(events) != 3 {
		t.Fatalf("stored %d events, want 3", len(events))
	}
	// One mark action = one shared timestamp across every occupant.
	for _, ev := range events[1:] {
		if !ev.Timestamp.Equal(events[0].Timestamp) {
			t.Errorf("timestamps differ within one mark: %v vs %v", ev.Timestamp, events[0].Timestamp)
		}
	}
	for _, ev := range events {
		if ev.MarkerID != "marker-1" {
			t.Errorf("marker_id = %q, want marker-1", ev.MarkerID)
		}
		if ev.UserID == "u3" {
			t.Error("bot occupant was recorded")
		}
	}
}

func TestMarkAllFailureLeavesNoPartialRows(t *testing.T) {
	database := testutil.NewTestDB(t)
	// Abort the insert for the second occupant so the mark fails mid-batch.
	if _, err := database.Exec(`CREATE TRIGGER reject_u2 BEFORE INSERT ON attendance
		WHEN NEW.user_id = 'u2' BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	occ := &testutil.FakeOccupancy{Occupants: []attendance.Occupant{
		{UserID: "u1", Display: "Alice"},
		{UserID: "u2", Display: "Bob"},
	}}
	store := attendance.NewStore(database)
	rec := attendance.NewRecorder(store, occ, cmdChannel, voiceChan, allowedRole)

	if _, err := rec.MarkAll(context.Background(), validRequest()); err == nil {
		t.Fatal("MarkAll succeeded, want store failure")
	}

	// All-or-nothing: a failed mark must not leave the first occupant's row
	// committed, or a retry would double-count them.
	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM attendance`).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if n != 0 {
		t.Errorf("failed mark left %d partial rows behind, want 0", n)
	}
}

func TestMarkAllRejectsEmptyVoiceChannel(t *testing.T) {
	rec, store := newRecorder(t, &testutil.FakeOccupancy{})
	_, err := rec.MarkAll(context.Background(), validRequest())
	if !errors.Is(err, attendance.ErrNobodyPresent) {
		t.Fatalf("err = %v, want ErrNobodyPresent", err)
	}
	if got := countEvents(t, store); len(got) != 0 {
		t.Errorf("stored %d events, want 0", len(got))
	}
}

func TestMarkAllRejectsBotsOnlyChannel(t *testing.T) {
	occ := &testutil.FakeOccupancy{Occupants: []attendance.Occupant{{UserID: "b1", Bot: true}}}
	rec, store := newRecorder(t, occ)
	_, err := rec.MarkAll(context.Background(), validRequest())
	if !errors.Is(err, attendance.ErrNobodyPresent) {
		t.Fatalf("err = %v, want ErrNobodyPresent", err)
	}
	if got := countEvents(t, store); len(got) != 0 {
		t.Errorf("stored %d events, want 0", len(got))
	}
}

func TestMarkAllGates(t *testing.T) {
	occ := &testutil.FakeOccupancy{Occupants: []attendance.Occupant{{UserID: "u1", Display: "Alice"}}}

	cases := []struct {
		name    string
		mutate  func(*attendance.MarkRequest)
		wantErr error
	}{
		{
			"wrong channel with role",
			func(r *attendance.MarkRequest) { r.ChannelID = "wrong" },
			attendance.ErrWrongChannel,
		},
		{
			"right channel without role",
			func(r *attendance.MarkRequest) { r.InvokerRoleIDs = []string{"999"} },
			attendance.ErrMissingRole,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, store := newRecorder(t, occ)
			req := validRequest()
			tc.mutate(&req)
			_, err := rec.MarkAll(context.Background(), req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if !attendance.IsRejection(err) {
				t.Error("gate failure must be a user-facing rejection")
			}
			if got := countEvents(t, store); len(got) != 0 {
				t.Errorf("stored %d events, want 0", len(got))
			}
		})
	}
}

func TestMarkAllRejectsMisconfiguredVoiceChannel(t *testing.T) {
	rec, store := newRecorder(t, &testutil.FakeOccupancy{Err: attendance.ErrNoVoiceChannel})
	_, err := rec.MarkAll(context.Background(), validRequest())
	if !errors.Is(err, attendance.ErrVoiceChannelMisconfigured) {
		t.Fatalf("err = %v, want ErrVoiceChannelMisconfigured", err)
	}
	if got := countEvents(t, store); len(got) != 0 {
		t.Errorf("stored %d events, want 0", len(got))
	}
}

func TestMarkAllPropagatesProviderFaults(t *testing.T) {
	boom := errors.New("gateway cache corrupt")
	rec, _ := newRecorder(t, &testutil.FakeOccupancy{Err: boom})
	_, err := rec.MarkAll(context.Background(), validRequest())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped provider fault", err)
	}
	if attendance.IsRejection(err) {
		t.Error("infrastructure fault must not look like a rejection")
	}
}
