package discord

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/voicemark/attendance"
	"github.com/onnwee/voicemark/reminder"
)

// VoiceOccupants implements attendance.OccupancyProvider from gateway state.
// It returns attendance.ErrNoVoiceChannel when the guild or channel cannot be
// resolved, or the channel is not a voice channel.
func (b *Bot) VoiceOccupants(guildID, channelID string) ([]attendance.Occupant, error) {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return nil, attendance.ErrNoVoiceChannel
	}
	channel, err := b.session.State.Channel(channelID)
	if err != nil || channel.Type != discordgo.ChannelTypeGuildVoice {
		return nil, attendance.ErrNoVoiceChannel
	}

	var occupants []attendance.Occupant
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		member, err := b.member(guildID, vs.UserID)
		if err != nil {
			return nil, fmt.Errorf("resolve member %s: %w", vs.UserID, err)
		}
		occupants = append(occupants, attendance.Occupant{
			UserID:  vs.UserID,
			Display: displayName(member),
			Bot:     member.User != nil && member.User.Bot,
		})
	}
	return occupants, nil
}

// member prefers the state cache and falls back to a REST lookup for members
// that joined voice before the cache warmed up.
func (b *Bot) member(guildID, userID string) (*discordgo.Member, error) {
	if member, err := b.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	slog.Debug("member cache miss, fetching", slog.String("user_id", userID), slog.String("component", "discord"))
	return b.session.GuildMember(guildID, userID)
}

// displayName picks the server nickname over the global display name over the
// account username.
func displayName(m *discordgo.Member) string {
	if m == nil || m.User == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

// SendChannelMessage implements reminder.ChannelSender. An unknown destination
// channel maps to reminder.ErrChannelNotFound so the scheduler can absorb it.
func (b *Bot) SendChannelMessage(channelID, content string) error {
	_, err := b.session.ChannelMessageSend(channelID, content)
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel {
		return reminder.ErrChannelNotFound
	}
	return err
}
