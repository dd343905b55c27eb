// Package discord adapts the attendance core to the Discord gateway. It owns
// the session, translates messages and component interactions into calls on
// the recorder and aggregator, and implements the occupancy and sender
// capabilities the core and the reminder scheduler consume.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/voicemark/attendance"
	"github.com/onnwee/voicemark/config"
	"github.com/onnwee/voicemark/reminder"
)

// markAllCustomID is the persistent component id of the mark-all button, so
// buttons posted before a restart keep working.
const markAllCustomID = "attendance:mark_all"

type Bot struct {
	session    *discordgo.Session
	cfg        *config.Config
	recorder   *attendance.Recorder
	aggregator *attendance.Aggregator
	scheduler  *reminder.Scheduler

	ctx   context.Context
	ready atomic.Bool
}

// New creates the gateway session. The bot is inert until Attach and Open are
// called; construction is two-phase because the recorder consumes the bot as
// its OccupancyProvider.
func New(cfg *config.Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentGuildMembers |
		discordgo.IntentMessageContent

	return &Bot{session: session, cfg: cfg}, nil
}

// Attach wires the core components into the adapter.
func (b *Bot) Attach(rec *attendance.Recorder, agg *attendance.Aggregator, sched *reminder.Scheduler) {
	b.recorder = rec
	b.aggregator = agg
	b.scheduler = sched
}

// Open registers handlers and connects to the gateway. ctx outlives the call
// and bounds all work dispatched from gateway events, including the reminder
// scheduler started on Ready.
func (b *Bot) Open(ctx context.Context) error {
	b.ctx = ctx
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// Ready reports whether the gateway session has completed its handshake.
func (b *Bot) Ready() bool {
	return b.ready.Load()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	slog.Info("discord session ready",
		slog.String("user", r.User.String()),
		slog.String("user_id", r.User.ID),
		slog.Int("guilds", len(r.Guilds)),
		slog.String("component", "discord"))

	// Ready fires again on gateway reconnects; Scheduler.Start is idempotent.
	if b.scheduler != nil {
		b.scheduler.Start(b.ctx)
	}
}
