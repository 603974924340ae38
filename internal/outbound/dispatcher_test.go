package outbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wabridgehq/wabridge/internal/message"
	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

type fakeSender struct {
	calls []whatsapp.SendRequest
	id    string
	err   error
}

func (f *fakeSender) Send(_ context.Context, _ whatsapp.Credentials, req whatsapp.SendRequest) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

type fakeWriter struct {
	rows []message.Message
	err  error
}

func (f *fakeWriter) Persist(_ context.Context, msg message.Message) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, msg)
	return nil
}

func TestDispatchText(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{id: "wamid.1"}
	writer := &fakeWriter{}
	d := NewDispatcher(nil, sender, writer)

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	msg, err := d.Dispatch(context.Background(), DispatchInput{
		Recipient:    "+91 80972 96453",
		LocalPartyID: "local-1",
		Payload:      Payload{Kind: KindText, Text: "hello"},
		Timestamp:    ts,
	})
	require.NoError(t, err)

	assert.Equal(t, "wamid.1", msg.ID)
	assert.Equal(t, "918097296453", msg.CounterpartID)
	assert.True(t, msg.SentByLocal)
	assert.True(t, msg.Read)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, message.TypeText, msg.Type)
	assert.Equal(t, ts, msg.SentAt)

	require.Len(t, sender.calls, 1)
	assert.Equal(t, "918097296453", sender.calls[0].To)
	require.Len(t, writer.rows, 1)
	assert.Equal(t, msg, writer.rows[0])
}

func TestDispatchInvalidRecipientSkipsNetwork(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	writer := &fakeWriter{}
	d := NewDispatcher(nil, sender, writer)

	_, err := d.Dispatch(context.Background(), DispatchInput{
		Recipient: "123",
		Payload:   Payload{Kind: KindText, Text: "hi"},
	})
	assert.ErrorIs(t, err, whatsapp.ErrInvalidPhone)
	assert.Empty(t, sender.calls)
	assert.Empty(t, writer.rows)
}

func TestDispatchProviderFailurePersistsNothing(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: errors.New("(#131030) recipient not in allowed list")}
	writer := &fakeWriter{}
	d := NewDispatcher(nil, sender, writer)

	_, err := d.Dispatch(context.Background(), DispatchInput{
		Recipient: "918097296453",
		Payload:   Payload{Kind: KindText, Text: "hi"},
	})
	require.Error(t, err)
	assert.Empty(t, writer.rows)
}

func TestDispatchSynthesizesIDWhenProviderOmitsOne(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, &fakeSender{id: ""}, &fakeWriter{})
	msg, err := d.Dispatch(context.Background(), DispatchInput{
		Recipient: "918097296453",
		Payload:   Payload{Kind: KindText, Text: "hi"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Contains(t, msg.ID, "local-")
}

func TestDispatchPersistFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, &fakeSender{id: "wamid.2"}, &fakeWriter{err: errors.New("db down")})
	msg, err := d.Dispatch(context.Background(), DispatchInput{
		Recipient: "918097296453",
		Payload:   Payload{Kind: KindText, Text: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.2", msg.ID)
}

func TestDispatchTemplate(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{id: "wamid.3"}
	writer := &fakeWriter{}
	d := NewDispatcher(nil, sender, writer)

	msg, err := d.Dispatch(context.Background(), DispatchInput{
		Recipient: "918097296453",
		Payload: Payload{
			Kind: KindTemplate,
			Template: &whatsapp.TemplateData{
				Name:     "order_update",
				BodyText: "Hi {{1}}, order {{2}} shipped",
				BodyVars: map[string]string{"1": "Sam", "2": "42"},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, message.TypeTemplate, msg.Type)
	assert.Equal(t, "Hi Sam, order 42 shipped", msg.Content)
	require.NotNil(t, msg.Media)
	require.NotNil(t, msg.Media.Template)
	assert.Equal(t, "order_update", msg.Media.Template.Name)
	assert.Equal(t, "en_US", msg.Media.Template.Language)

	require.Len(t, sender.calls, 1)
	req := sender.calls[0]
	assert.Equal(t, "template", req.Type)
	require.NotNil(t, req.Template)
	assert.Equal(t, "order_update", req.Template.Name)
}

func TestDispatchBroadcastTag(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	d := NewDispatcher(nil, &fakeSender{id: "wamid.4"}, writer)

	msg, err := d.Dispatch(context.Background(), DispatchInput{
		Recipient: "918097296453",
		Payload:   Payload{Kind: KindText, Text: "hi"},
		Broadcast: &BroadcastTag{GroupID: "grp-1", BroadcastID: "bc-1"},
	})
	require.NoError(t, err)
	require.NotNil(t, msg.Media)
	assert.Equal(t, "grp-1", msg.Media.BroadcastGroupID)
	assert.Equal(t, "bc-1", msg.Media.BroadcastID)
}

func TestDispatchRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, &fakeSender{}, &fakeWriter{})

	_, err := d.Dispatch(context.Background(), DispatchInput{
		Recipient: "918097296453",
		Payload:   Payload{Kind: KindText, Text: "   "},
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = d.Dispatch(context.Background(), DispatchInput{
		Recipient: "918097296453",
		Payload:   Payload{Kind: KindTemplate},
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
