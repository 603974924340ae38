package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wabridgehq/wabridge/internal/groups"
	"github.com/wabridgehq/wabridge/internal/message"
	"github.com/wabridgehq/wabridge/internal/outbound"
	"github.com/wabridgehq/wabridge/internal/settings"
)

type fakeGroups struct {
	group   groups.Group
	members []string
	getErr  error
}

func (f *fakeGroups) Get(context.Context, string) (groups.Group, error) {
	if f.getErr != nil {
		return groups.Group{}, f.getErr
	}
	return f.group, nil
}

func (f *fakeGroups) Members(context.Context, string) ([]string, error) {
	return f.members, nil
}

type fakeCredentials struct {
	settings settings.Settings
}

func (f *fakeCredentials) Get(_ context.Context, accountID string) (settings.Settings, error) {
	s := f.settings
	s.AccountID = accountID
	return s, nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	inputs  []outbound.DispatchInput
	failFor map[string]error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, input outbound.DispatchInput) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if err := f.failFor[input.Recipient]; err != nil {
		return message.Message{}, err
	}
	return message.Message{ID: "wamid." + input.Recipient, CounterpartID: input.Recipient}, nil
}

func configured() settings.Settings {
	return settings.Settings{AccessToken: "tok", PhoneNumberID: "pn1"}
}

func textPayload() outbound.Payload {
	return outbound.Payload{Kind: outbound.KindText, Text: "hello all"}
}

func TestSendFanOut(t *testing.T) {
	t.Parallel()

	members := []string{"918097296453", "918097296454", "918097296455"}
	dispatcher := &fakeDispatcher{}
	svc := NewService(nil,
		&fakeGroups{group: groups.Group{ID: "grp-1", OwnerID: "owner-1"}, members: members},
		&fakeCredentials{settings: configured()},
		dispatcher)

	result, err := svc.Send(context.Background(), "owner-1", "grp-1", textPayload())
	require.NoError(t, err)

	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.NotEmpty(t, result.BroadcastID)

	require.Len(t, dispatcher.inputs, 3)
	for _, input := range dispatcher.inputs {
		// Every leg shares the event's timestamp and broadcast tag.
		assert.Equal(t, result.SentAt, input.Timestamp)
		require.NotNil(t, input.Broadcast)
		assert.Equal(t, result.BroadcastID, input.Broadcast.BroadcastID)
		assert.Equal(t, "grp-1", input.Broadcast.GroupID)
		assert.Equal(t, "owner-1", input.LocalPartyID)
	}
}

func TestSendPartialFailure(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{failFor: map[string]error{
		"918097296454": errors.New("(#131026) message undeliverable"),
	}}
	svc := NewService(nil,
		&fakeGroups{group: groups.Group{ID: "grp-1", OwnerID: "owner-1"},
			members: []string{"918097296453", "918097296454", "918097296455"}},
		&fakeCredentials{settings: configured()},
		dispatcher)

	result, err := svc.Send(context.Background(), "owner-1", "grp-1", textPayload())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "918097296454", result.Errors[0].Recipient)
	assert.Contains(t, result.Errors[0].Error, "undeliverable")
}

func TestSendRejectsInvalidPayloadBeforeFanOut(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{}
	svc := NewService(nil,
		&fakeGroups{group: groups.Group{ID: "grp-1", OwnerID: "owner-1"}, members: []string{"918097296453", "918097296454"}},
		&fakeCredentials{settings: configured()},
		dispatcher)

	_, err := svc.Send(context.Background(), "owner-1", "grp-1",
		outbound.Payload{Kind: outbound.KindText, Text: "   "})
	assert.ErrorIs(t, err, outbound.ErrInvalidPayload)
	assert.Empty(t, dispatcher.inputs)
}

func TestSendPreconditionsAbortBeforeAnyDispatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		groups  *fakeGroups
		creds   *fakeCredentials
		ownerID string
		wantErr error
	}{
		{
			name:    "unknown group",
			groups:  &fakeGroups{getErr: groups.ErrNotFound},
			creds:   &fakeCredentials{settings: configured()},
			ownerID: "owner-1",
			wantErr: groups.ErrNotFound,
		},
		{
			name:    "not the owner",
			groups:  &fakeGroups{group: groups.Group{ID: "grp-1", OwnerID: "owner-1"}, members: []string{"918097296453"}},
			creds:   &fakeCredentials{settings: configured()},
			ownerID: "intruder",
			wantErr: groups.ErrNotOwner,
		},
		{
			name:    "empty group",
			groups:  &fakeGroups{group: groups.Group{ID: "grp-1", OwnerID: "owner-1"}},
			creds:   &fakeCredentials{settings: configured()},
			ownerID: "owner-1",
			wantErr: ErrNoMembers,
		},
		{
			name:    "no credential",
			groups:  &fakeGroups{group: groups.Group{ID: "grp-1", OwnerID: "owner-1"}, members: []string{"918097296453"}},
			creds:   &fakeCredentials{},
			ownerID: "owner-1",
			wantErr: ErrNoCredential,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dispatcher := &fakeDispatcher{}
			svc := NewService(nil, tc.groups, tc.creds, dispatcher)

			_, err := svc.Send(context.Background(), tc.ownerID, "grp-1", textPayload())
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, dispatcher.inputs)
		})
	}
}
