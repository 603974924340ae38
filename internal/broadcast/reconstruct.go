package broadcast

import (
	"sort"
	"time"

	"github.com/wabridgehq/wabridge/internal/message"
)

// Event is one reconstructed broadcast: a representative message plus the
// recipients it fanned out to.
type Event struct {
	BroadcastID string          `json:"broadcast_id,omitempty"`
	GroupID     string          `json:"group_id"`
	Message     message.Message `json:"message"`
	Recipients  []string        `json:"recipients"`
	SentAt      time.Time       `json:"sent_at"`
}

// Reconstruct rebuilds broadcast events for one group from stored rows.
// Rows sharing a broadcast id form one event; rows written before ids
// existed are bucketed by their exact timestamp instead. The representative
// row is the lexicographically smallest id, making the choice stable across
// calls. Events come back oldest first.
func Reconstruct(rows []message.Message, groupID string) []Event {
	buckets := make(map[string][]message.Message)
	for _, row := range rows {
		if !row.SentByLocal || row.Media == nil || row.Media.BroadcastGroupID != groupID {
			continue
		}
		key := row.Media.BroadcastID
		if key == "" {
			key = "ts:" + row.SentAt.UTC().Format(time.RFC3339Nano)
		}
		buckets[key] = append(buckets[key], row)
	}

	events := make([]Event, 0, len(buckets))
	for _, bucket := range buckets {
		representative := bucket[0]
		recipients := make([]string, 0, len(bucket))
		for _, row := range bucket {
			if row.ID < representative.ID {
				representative = row
			}
			recipients = append(recipients, row.CounterpartID)
		}
		sort.Strings(recipients)
		events = append(events, Event{
			BroadcastID: representative.Media.BroadcastID,
			GroupID:     groupID,
			Message:     representative,
			Recipients:  recipients,
			SentAt:      representative.SentAt,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].SentAt.Equal(events[j].SentAt) {
			return events[i].SentAt.Before(events[j].SentAt)
		}
		return events[i].BroadcastID < events[j].BroadcastID
	})
	return events
}
