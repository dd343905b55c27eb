// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For the reminder feature, use ValidateReminderReady.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	// Discord
	DiscordToken   string `validate:"required"`
	TextChannelID  string `validate:"required,number"`
	VoiceChannelID string `validate:"required,number"`
	AllowedRoleID  string `validate:"required,number"`

	// Reminders
	PingChannelID    string `validate:"omitempty,number"`
	PingRoleID       string `validate:"omitempty,number"`
	ReminderMinute   int    `validate:"min=0,max=59"`
	ReminderSchedule map[int][]string
	ReminderTZ       *time.Location

	// Database
	DBPath string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It fails on a missing
// DISCORD_TOKEN or malformed values; reminder variables are optional and only
// checked by ValidateReminderReady when the feature is wanted.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	cfg.TextChannelID = os.Getenv("TEXT_CHANNEL_ID")
	cfg.VoiceChannelID = os.Getenv("VOICE_CHANNEL_ID")
	cfg.AllowedRoleID = os.Getenv("ALLOWED_ROLE_ID")

	cfg.PingChannelID = os.Getenv("PING_CHANNEL_ID")
	cfg.PingRoleID = os.Getenv("PING_ROLE_ID")

	cfg.ReminderMinute = 50
	if v := os.Getenv("REMINDER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_MINUTE: %w", err)
		}
		cfg.ReminderMinute = n
	}

	tzName := os.Getenv("REMINDER_TZ")
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TZ %q: %w", tzName, err)
	}
	cfg.ReminderTZ = loc

	if v := os.Getenv("REMINDER_SCHEDULE"); v != "" {
		sched, err := ParseSchedule(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_SCHEDULE: %w", err)
		}
		cfg.ReminderSchedule = sched
	}

	cfg.DBPath = os.Getenv("DB_PATH")
	if cfg.DBPath == "" {
		cfg.DBPath = "attendance.db"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// ParseSchedule decodes the reminder schedule from JSON. Keys are hours of day
// (0-23); each value is either a single message string or an array of candidate
// messages one of which is picked at random. Both forms may be mixed:
//
//	{"8": "boss in 10 minutes", "20": ["msg a", "msg b"]}
func ParseSchedule(raw string) (map[int][]string, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &outer); err != nil {
		return nil, err
	}
	sched := make(map[int][]string, len(outer))
	for key, val := range outer {
		hour, err := strconv.Atoi(key)
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("schedule hour %q out of range", key)
		}
		var single string
		if err := json.Unmarshal(val, &single); err == nil {
			sched[hour] = []string{single}
			continue
		}
		var many []string
		if err := json.Unmarshal(val, &many); err != nil {
			return nil, fmt.Errorf("schedule hour %q: value must be a string or array of strings", key)
		}
		if len(many) == 0 {
			return nil, fmt.Errorf("schedule hour %q: empty message list", key)
		}
		sched[hour] = many
	}
	return sched, nil
}

// ValidateReminderReady checks required fields when the reminder scheduler is enabled.
func (c *Config) ValidateReminderReady() error {
	if c.PingChannelID == "" || c.PingRoleID == "" || len(c.ReminderSchedule) == 0 {
		return fmt.Errorf("missing reminder env: require PING_CHANNEL_ID, PING_ROLE_ID, REMINDER_SCHEDULE")
	}
	return nil
}
