// Package attendance implements the attendance core: the append-only event
// store, the permission-gated mark-all recorder, and the per-day report
// aggregator. It depends only on narrow capability interfaces, never on the
// Discord client types.
package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// tsLayout is the stored timestamp format. Fixed-width UTC so that
// lexicographic comparison on ts_utc equals chronological comparison.
const tsLayout = "2006-01-02T15:04:05.000000Z"

// Event is one (mark action, present user) pair. Events are append-only:
// the store exposes no update or delete path.
type Event struct {
	ID             int64
	Timestamp      time.Time
	GuildID        string
	VoiceChannelID string
	MarkerID       string
	UserID         string
	UserDisplay    string
}

// Store persists attendance events in the sqlite attendance table.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

const insertEventSQL = `INSERT INTO attendance (ts_utc, guild_id, voice_channel_id, marker_id, user_id, user_display)
	 VALUES (?, ?, ?, ?, ?, ?)`

// Append inserts one event row. Storage errors propagate to the caller; there
// is no retry.
func (s *Store) Append(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, insertEventSQL,
		ev.Timestamp.UTC().Format(tsLayout), ev.GuildID, ev.VoiceChannelID, ev.MarkerID, ev.UserID, ev.UserDisplay)
	if err != nil {
		return fmt.Errorf("append attendance event: %w", err)
	}
	return nil
}

// AppendBatch inserts all events in a single transaction: either every row is
// committed or none are. A failure on any insert rolls the whole batch back,
// so a failed mark never leaves partial rows behind.
func (s *Store) AppendBatch(ctx context.Context, events []Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance batch: %w", err)
	}
	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, insertEventSQL,
			ev.Timestamp.UTC().Format(tsLayout), ev.GuildID, ev.VoiceChannelID, ev.MarkerID, ev.UserID, ev.UserDisplay); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("append attendance event: %w (rollback: %v)", err, rbErr)
			}
			return fmt.Errorf("append attendance event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance batch: %w", err)
	}
	return nil
}

// QueryWindow returns all events at or after since for the given scope.
// Result order is unspecified; the aggregator imposes its own ordering.
func (s *Store) QueryWindow(ctx context.Context, guildID, voiceChannelID string, since time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts_utc, guild_id, voice_channel_id, marker_id, user_id, COALESCE(user_display, '')
		 FROM attendance
		 WHERE guild_id = ? AND voice_channel_id = ? AND ts_utc >= ?`,
		guildID, voiceChannelID, since.UTC().Format(tsLayout))
	if err != nil {
		return nil, fmt.Errorf("query attendance window: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts string
		if err := rows.Scan(&ev.ID, &ts, &ev.GuildID, &ev.VoiceChannelID, &ev.MarkerID, &ev.UserID, &ev.UserDisplay); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		ev.Timestamp, err = parseStoredTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse ts_utc %q: %w", ts, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// parseStoredTime accepts the canonical layout plus RFC3339 variants written by
// earlier versions of the recorder.
func parseStoredTime(ts string) (time.Time, error) {
	if t, err := time.Parse(tsLayout, ts); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, ts)
}
