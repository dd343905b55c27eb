package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/onnwee/voicemark/telemetry"
)

// Occupant is one user currently connected to a voice channel.
type Occupant struct {
	UserID  string
	Display string
	Bot     bool
}

// OccupancyProvider reports the current occupants of a voice channel. The
// Discord adapter implements it from gateway state; tests use fakes. A
// missing or non-voice channel is signalled with ErrNoVoiceChannel.
type OccupancyProvider interface {
	VoiceOccupants(guildID, channelID string) ([]Occupant, error)
}

// MarkRequest carries everything the recorder needs about one mark-all
// invocation.
type MarkRequest struct {
	GuildID        string
	ChannelID      string
	InvokerID      string
	InvokerRoleIDs []string
}

// Recorder validates mark requests and appends one event per occupant.
type Recorder struct {
	store     *Store
	occupancy OccupancyProvider

	commandChannelID string
	voiceChannelID   string
	allowedRoleID    string

	// Now is the clock used for the shared per-invocation timestamp.
	// Overridable in tests.
	Now func() time.Time
}

func NewRecorder(store *Store, occupancy OccupancyProvider, commandChannelID, voiceChannelID, allowedRoleID string) *Recorder {
	return &Recorder{
		store:            store,
		occupancy:        occupancy,
		commandChannelID: commandChannelID,
		voiceChannelID:   voiceChannelID,
		allowedRoleID:    allowedRoleID,
		Now:              time.Now,
	}
}

// MarkAll records everyone currently in the configured voice channel and
// returns the number marked. Preconditions are checked in order and each
// failure short-circuits with a distinct Rejection; store errors propagate.
//
// All events of one invocation share a single timestamp captured once, so a
// mark counts as exactly one unit per user in reports no matter how long the
// inserts take.
func (r *Recorder) MarkAll(ctx context.Context, req MarkRequest) (int, error) {
	if req.ChannelID != r.commandChannelID {
		telemetry.IncMarkRejection()
		return 0, ErrWrongChannel
	}
	if !slices.Contains(req.InvokerRoleIDs, r.allowedRoleID) {
		telemetry.IncMarkRejection()
		return 0, ErrMissingRole
	}

	occupants, err := r.occupancy.VoiceOccupants(req.GuildID, r.voiceChannelID)
	if errors.Is(err, ErrNoVoiceChannel) {
		telemetry.IncMarkRejection()
		return 0, ErrVoiceChannelMisconfigured
	}
	if err != nil {
		return 0, fmt.Errorf("snapshot voice occupancy: %w", err)
	}
	present := occupants[:0:0]
	for _, occ := range occupants {
		if !occ.Bot {
			present = append(present, occ)
		}
	}
	if len(present) == 0 {
		telemetry.IncMarkRejection()
		return 0, ErrNobodyPresent
	}

	ts := r.Now().UTC()
	events := make([]Event, 0, len(present))
	for _, occ := range present {
		events = append(events, Event{
			Timestamp:      ts,
			GuildID:        req.GuildID,
			VoiceChannelID: r.voiceChannelID,
			MarkerID:       req.InvokerID,
			UserID:         occ.UserID,
			UserDisplay:    occ.Display,
		})
	}
	// One transaction per invocation: a failed mark persists zero rows, so a
	// retry cannot double-count the occupants inserted before the failure.
	if err := r.store.AppendBatch(ctx, events); err != nil {
		return 0, err
	}

	telemetry.IncMark()
	telemetry.AddEventsAppended(len(present))
	slog.Info("attendance marked",
		slog.String("guild_id", req.GuildID),
		slog.String("marker_id", req.InvokerID),
		slog.Int("count", len(present)),
		slog.String("component", "recorder"))
	return len(present), nil
}
