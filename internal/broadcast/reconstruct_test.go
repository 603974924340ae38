package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wabridgehq/wabridge/internal/message"
)

func broadcastRow(id, recipient, groupID, broadcastID string, sentAt time.Time) message.Message {
	return message.Message{
		ID:            id,
		CounterpartID: recipient,
		LocalPartyID:  "owner-1",
		SentByLocal:   true,
		Content:       "hello all",
		Type:          message.TypeText,
		SentAt:        sentAt,
		Media: &message.MediaMetadata{
			BroadcastGroupID: groupID,
			BroadcastID:      broadcastID,
		},
	}
}

func TestReconstructGroupsByBroadcastID(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	rows := []message.Message{
		broadcastRow("wamid.b", "918097296454", "grp-1", "bc-1", t1),
		broadcastRow("wamid.a", "918097296453", "grp-1", "bc-1", t1),
		broadcastRow("wamid.c", "918097296453", "grp-1", "bc-2", t2),
	}

	events := Reconstruct(rows, "grp-1")
	require.Len(t, events, 2)

	// Oldest event first, represented by the smallest row id.
	assert.Equal(t, "bc-1", events[0].BroadcastID)
	assert.Equal(t, "wamid.a", events[0].Message.ID)
	assert.Equal(t, []string{"918097296453", "918097296454"}, events[0].Recipients)
	assert.Equal(t, t1, events[0].SentAt)

	assert.Equal(t, "bc-2", events[1].BroadcastID)
	assert.Equal(t, []string{"918097296453"}, events[1].Recipients)
}

func TestReconstructTimestampFallback(t *testing.T) {
	t.Parallel()

	shared := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	other := shared.Add(time.Second)
	rows := []message.Message{
		broadcastRow("wamid.1", "918097296453", "grp-1", "", shared),
		broadcastRow("wamid.2", "918097296454", "grp-1", "", shared),
		broadcastRow("wamid.3", "918097296455", "grp-1", "", other),
	}

	events := Reconstruct(rows, "grp-1")
	require.Len(t, events, 2)
	assert.Len(t, events[0].Recipients, 2)
	assert.Len(t, events[1].Recipients, 1)
}

func TestReconstructFiltersOtherGroupsAndInbound(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	inbound := broadcastRow("wamid.in", "918097296456", "grp-1", "bc-1", ts)
	inbound.SentByLocal = false
	rows := []message.Message{
		broadcastRow("wamid.1", "918097296453", "grp-1", "bc-1", ts),
		broadcastRow("wamid.2", "918097296454", "grp-2", "bc-9", ts),
		inbound,
		{ID: "wamid.plain", SentByLocal: true, SentAt: ts},
	}

	events := Reconstruct(rows, "grp-1")
	require.Len(t, events, 1)
	assert.Equal(t, []string{"918097296453"}, events[0].Recipients)
}

func TestReconstructEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Reconstruct(nil, "grp-1"))
}
