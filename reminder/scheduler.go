// Package reminder implements the fixed-time reminder scheduler: a once-a-minute
// tick that posts a role-mention message to a fixed channel at configured local
// wall-clock times.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/onnwee/voicemark/telemetry"
)

// ErrChannelNotFound is returned by a ChannelSender when the destination
// channel cannot be resolved. The scheduler absorbs it silently; the next
// scheduled hour is the next opportunity.
var ErrChannelNotFound = errors.New("reminder channel not found")

// ChannelSender delivers a message to a channel. Fire-and-forget: the
// scheduler consumes nothing beyond the call's success or failure.
type ChannelSender interface {
	SendChannelMessage(channelID, content string) error
}

// Scheduler fires at minute Minute of every hour present in Schedule,
// evaluated in Location. A single-candidate message list is the fixed-text
// variant; longer lists are picked from uniformly at random.
type Scheduler struct {
	sender    ChannelSender
	channelID string
	roleID    string
	minute    int
	schedule  map[int][]string
	location  *time.Location

	interval time.Duration
	now      func() time.Time
	rnd      *rand.Rand

	running atomic.Bool
}

func New(sender ChannelSender, channelID, roleID string, minute int, schedule map[int][]string, location *time.Location) *Scheduler {
	return &Scheduler{
		sender:    sender,
		channelID: channelID,
		roleID:    roleID,
		minute:    minute,
		schedule:  schedule,
		location:  location,
		interval:  time.Minute,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the tick loop. It is idempotent: a second call while the
// loop is running is a no-op. Call it only once the platform session is
// ready, e.g. from the gateway Ready handler (which fires again on
// reconnects, hence the guard).
func (s *Scheduler) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		slog.Debug("reminder scheduler already running", slog.String("component", "reminder"))
		return
	}
	slog.Info("reminder scheduler starting",
		slog.Int("minute", s.minute),
		slog.Int("hours", len(s.schedule)),
		slog.String("tz", s.location.String()),
		slog.String("component", "reminder"))
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			slog.Info("reminder scheduler stopped", slog.String("component", "reminder"))
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick evaluates the schedule against the current local wall-clock and
// delivers at most one message.
func (s *Scheduler) tick() {
	now := s.now().In(s.location)
	if now.Minute() != s.minute {
		return
	}
	candidates, ok := s.schedule[now.Hour()]
	if !ok || len(candidates) == 0 {
		return
	}

	text := candidates[s.rnd.Intn(len(candidates))]
	content := fmt.Sprintf("<@&%s> %s", s.roleID, text)

	if err := s.sender.SendChannelMessage(s.channelID, content); err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			// Destination missing is a silent no-op, not an alert.
			slog.Debug("reminder channel not found; skipping", slog.String("channel_id", s.channelID), slog.String("component", "reminder"))
			return
		}
		telemetry.IncReminderSendFailure()
		slog.Error("reminder delivery failed", slog.Any("err", err), slog.String("component", "reminder"))
		return
	}
	telemetry.IncReminderSent()
	slog.Info("reminder sent", slog.Int("hour", now.Hour()), slog.String("component", "reminder"))
}
