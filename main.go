// Command voicemark is the main entrypoint for the attendance bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the SQLite store and runs idempotent migrations.
//   - Connects the Discord gateway session: mark-all button, !setup, !say,
//     !report, and the scheduled role-mention reminders.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/voicemark/attendance"
	"github.com/onnwee/voicemark/config"
	"github.com/onnwee/voicemark/db"
	"github.com/onnwee/voicemark/discord"
	"github.com/onnwee/voicemark/reminder"
	"github.com/onnwee/voicemark/server"
	"github.com/onnwee/voicemark/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("voicemark", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run migrations using the dual-system approach: versioned migrations
	// (golang-migrate) when the migrations directory ships with the binary,
	// embedded idempotent SQL otherwise.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Discord adapter + core wiring. The bot implements the occupancy and
	// sender capabilities the core consumes, hence the two-phase setup.
	bot, err := discord.New(cfg)
	if err != nil {
		slog.Error("failed to create discord session", slog.Any("err", err))
		os.Exit(1)
	}

	store := attendance.NewStore(database)
	recorder := attendance.NewRecorder(store, bot, cfg.TextChannelID, cfg.VoiceChannelID, cfg.AllowedRoleID)
	aggregator := attendance.NewAggregator(store)

	var scheduler *reminder.Scheduler
	if err := cfg.ValidateReminderReady(); err == nil {
		scheduler = reminder.New(bot, cfg.PingChannelID, cfg.PingRoleID, cfg.ReminderMinute, cfg.ReminderSchedule, cfg.ReminderTZ)
	} else {
		slog.Info("reminders disabled", slog.Any("reason", err))
	}

	bot.Attach(recorder, aggregator, scheduler)
	if err := bot.Open(ctx); err != nil {
		slog.Error("failed to open discord gateway", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := bot.Close(); err != nil {
			slog.Error("failed to close discord session", slog.Any("err", err))
		}
	}()

	// HTTP server (health/readiness/status/metrics)
	go func() {
		if err := server.Start(ctx, database, cfg.HTTPAddr, bot.Ready); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
