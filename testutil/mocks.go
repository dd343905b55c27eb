package testutil

import (
	"sync"

	"github.com/onnwee/voicemark/attendance"
)

// FakeOccupancy is an attendance.OccupancyProvider returning a fixed occupant
// set or error.
type FakeOccupancy struct {
	Occupants []attendance.Occupant
	Err       error
}

func (f *FakeOccupancy) VoiceOccupants(guildID, channelID string) ([]attendance.Occupant, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Occupants, nil
}

// SentMessage is one delivery captured by RecordingSender.
type SentMessage struct {
	ChannelID string
	Content   string
}

// RecordingSender is a reminder.ChannelSender that captures deliveries and can
// be primed to fail.
type RecordingSender struct {
	mu   sync.Mutex
	Err  error
	sent []SentMessage
}

func (r *RecordingSender) SendChannelMessage(channelID, content string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentMessage{ChannelID: channelID, Content: content})
	return nil
}

// Sent returns a copy of the captured deliveries.
func (r *RecordingSender) Sent() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}
