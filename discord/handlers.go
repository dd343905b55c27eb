package discord

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/onnwee/voicemark/attendance"
	"github.com/onnwee/voicemark/telemetry"
)

const (
	wrongChannelMsg = "This command only works in the designated channel."
	missingRoleMsg  = "You don't have the required role."
	setupPrompt     = "Press the button to mark everyone currently in voice:"
	reportUsageMsg  = "Usage: `!report [days]` with a whole number of days."
)

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	content := strings.TrimSpace(m.Content)
	switch {
	case content == "!setup":
		b.handleSetup(m)
	case content == "!say" || strings.HasPrefix(content, "!say "):
		b.handleSay(m, strings.TrimSpace(strings.TrimPrefix(content, "!say")))
	case content == "!report" || strings.HasPrefix(content, "!report "):
		b.handleReport(m, strings.TrimSpace(strings.TrimPrefix(content, "!report")))
	}
}

// handleSetup posts the persistent mark-all control. No core logic.
func (b *Bot) handleSetup(m *discordgo.MessageCreate) {
	if m.ChannelID != b.cfg.TextChannelID {
		b.reply(m.ChannelID, wrongChannelMsg)
		return
	}
	_, err := b.session.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content: setupPrompt,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "✅ Mark everyone in voice",
						Style:    discordgo.SuccessButton,
						CustomID: markAllCustomID,
					},
				},
			},
		},
	})
	if err != nil {
		slog.Error("failed to post mark-all control", slog.Any("err", err), slog.String("component", "discord"))
	}
}

// handleSay is a role-gated echo: delete the invoking message best-effort,
// then repost its text as the bot.
func (b *Bot) handleSay(m *discordgo.MessageCreate, text string) {
	if m.ChannelID != b.cfg.TextChannelID {
		b.reply(m.ChannelID, wrongChannelMsg)
		return
	}
	if m.Member == nil || !slices.Contains(m.Member.Roles, b.cfg.AllowedRoleID) {
		b.reply(m.ChannelID, missingRoleMsg)
		return
	}
	if text == "" {
		return
	}
	// Needs Manage Messages; without it the delete fails and that is fine.
	if err := b.session.ChannelMessageDelete(m.ChannelID, m.ID); err != nil {
		slog.Debug("could not delete !say invocation", slog.Any("err", err), slog.String("component", "discord"))
	}
	b.reply(m.ChannelID, text)
}

func (b *Bot) handleReport(m *discordgo.MessageCreate, arg string) {
	if m.ChannelID != b.cfg.TextChannelID {
		b.reply(m.ChannelID, wrongChannelMsg)
		return
	}
	days := 7
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			b.reply(m.ChannelID, reportUsageMsg)
			return
		}
		days = n
	}

	ctx := telemetry.WithCorrelation(b.ctx, uuid.New().String())
	chunks, err := b.aggregator.BuildReport(ctx, m.GuildID, b.cfg.VoiceChannelID, days)
	if err != nil {
		if attendance.IsRejection(err) {
			b.reply(m.ChannelID, err.Error())
			return
		}
		telemetry.LoggerWithCorr(ctx).Error("report build failed", slog.Any("err", err), slog.String("component", "discord"))
		return
	}

	b.reply(m.ChannelID, "Attendance by day for the last **"+strconv.Itoa(days)+"** days (channel: <#"+b.cfg.VoiceChannelID+">):")
	for _, chunk := range chunks {
		b.reply(m.ChannelID, chunk)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	if i.MessageComponentData().CustomID != markAllCustomID {
		return
	}
	if i.Member == nil || i.Member.User == nil {
		b.respondEphemeral(i, "This button only works inside a server.")
		return
	}

	ctx := telemetry.WithCorrelation(b.ctx, uuid.New().String())
	req := attendance.MarkRequest{
		GuildID:        i.GuildID,
		ChannelID:      i.ChannelID,
		InvokerID:      i.Member.User.ID,
		InvokerRoleIDs: i.Member.Roles,
	}
	n, err := b.recorder.MarkAll(ctx, req)
	if err != nil {
		if attendance.IsRejection(err) {
			b.respondEphemeral(i, err.Error())
			return
		}
		telemetry.LoggerWithCorr(ctx).Error("mark-all failed", slog.Any("err", err), slog.String("component", "discord"))
		return
	}
	b.respondEphemeral(i, "Marked **"+strconv.Itoa(n)+"** ✅")
}

func (b *Bot) reply(channelID, content string) {
	if _, err := b.session.ChannelMessageSend(channelID, content); err != nil {
		slog.Error("channel message send failed",
			slog.String("channel_id", channelID),
			slog.Any("err", err),
			slog.String("component", "discord"))
	}
}

func (b *Bot) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("interaction response failed", slog.Any("err", err), slog.String("component", "discord"))
	}
}
