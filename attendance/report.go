package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/onnwee/voicemark/telemetry"
)

const (
	// maxChunkLen is the soft cap per delivered message. Discord's hard limit
	// is 2000; 1800 leaves headroom for mention expansion.
	maxChunkLen = 1800
	// maxChunks bounds how many messages one report may flush before it is
	// truncated with a notice.
	maxChunks = 5

	minReportDays = 1
	maxReportDays = 60
)

// TruncationNotice replaces the remainder of a report that would need more
// than maxChunks messages.
const TruncationNotice = "Report is too long — try fewer days (e.g. `!report 7`)."

// Aggregator builds per-day attendance reports from the event store.
type Aggregator struct {
	store *Store

	// Now anchors the trailing report window. Overridable in tests.
	Now func() time.Time
}

func NewAggregator(store *Store) *Aggregator {
	return &Aggregator{store: store, Now: time.Now}
}

type userTally struct {
	name  string
	count int
}

// BuildReport renders attendance for the trailing days window as a slice of
// message-sized chunks. Day buckets use the UTC date of each stored timestamp
// and are ordered ascending; within a day users are ordered by count
// descending, ties broken by case-insensitive name. days outside [1,60] and
// an empty window are Rejections, not faults.
func (a *Aggregator) BuildReport(ctx context.Context, guildID, voiceChannelID string, days int) ([]string, error) {
	if days < minReportDays || days > maxReportDays {
		return nil, ErrDaysOutOfRange
	}

	since := a.Now().UTC().AddDate(0, 0, -days)
	events, err := a.store.QueryWindow(ctx, guildID, voiceChannelID, since)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoData
	}

	// day -> user -> tally. Display name is last-write-wins over the scan
	// order, falling back to a synthesized ID label.
	perDay := make(map[string]map[string]*userTally)
	for _, ev := range events {
		day := ev.Timestamp.UTC().Format("2006-01-02")
		users, ok := perDay[day]
		if !ok {
			users = make(map[string]*userTally)
			perDay[day] = users
		}
		tally, ok := users[ev.UserID]
		if !ok {
			name := ev.UserDisplay
			if name == "" {
				name = "ID:" + ev.UserID
			}
			tally = &userTally{name: name}
			users[ev.UserID] = tally
		}
		tally.count++
		if ev.UserDisplay != "" {
			tally.name = ev.UserDisplay
		}
	}

	dayKeys := make([]string, 0, len(perDay))
	for day := range perDay {
		dayKeys = append(dayKeys, day)
	}
	sort.Strings(dayKeys)

	chunks := make([]string, 0, 1)
	current := ""
	for _, day := range dayKeys {
		block := renderDayBlock(day, perDay[day])
		// A lone oversized day block is carried as its own chunk rather than
		// flushing an empty buffer ahead of it.
		if current != "" && len(current)+len(block) > maxChunkLen {
			chunks = append(chunks, strings.TrimRight(current, "\n"))
			current = block
			if len(chunks) >= maxChunks {
				chunks = append(chunks, TruncationNotice)
				telemetry.IncReportBuilt()
				telemetry.ObserveReportChunks(len(chunks))
				return chunks, nil
			}
		} else {
			current += block
		}
	}
	if current != "" {
		chunks = append(chunks, strings.TrimRight(current, "\n"))
	}

	telemetry.IncReportBuilt()
	telemetry.ObserveReportChunks(len(chunks))
	return chunks, nil
}

func renderDayBlock(day string, users map[string]*userTally) string {
	tallies := make([]*userTally, 0, len(users))
	for _, t := range users {
		tallies = append(tallies, t)
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].count != tallies[j].count {
			return tallies[i].count > tallies[j].count
		}
		return strings.ToLower(tallies[i].name) < strings.ToLower(tallies[j].name)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "📅 **%s**\n", day)
	for _, t := range tallies {
		fmt.Fprintf(&b, "• **%s** — %d\n", t.name, t.count)
	}
	b.WriteString("\n")
	return b.String()
}
