package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

type recordingProcessor struct {
	payloads []whatsapp.WebhookPayload
	err      error
}

func (p *recordingProcessor) Process(_ context.Context, payload whatsapp.WebhookPayload) error {
	p.payloads = append(p.payloads, payload)
	return p.err
}

func webhookGet(t *testing.T, h *WebhookHandler, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/webhook?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Verify(e.NewContext(req, rec)))
	return rec
}

func webhookPost(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Receive(e.NewContext(req, rec)))
	return rec
}

func TestWebhookVerify(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(nil, &recordingProcessor{}, "secret-token")

	rec := webhookGet(t, h, url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {"secret-token"},
		"hub.challenge":    {"challenge-123"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "challenge-123", rec.Body.String())
}

func TestWebhookVerifyRejected(t *testing.T) {
	t.Parallel()

	h := NewWebhookHandler(nil, &recordingProcessor{}, "secret-token")

	tests := []struct {
		name   string
		params url.Values
	}{
		{"wrong token", url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {"nope"}, "hub.challenge": {"c"}}},
		{"wrong mode", url.Values{"hub.mode": {"unsubscribe"}, "hub.verify_token": {"secret-token"}}},
		{"missing token", url.Values{"hub.mode": {"subscribe"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := webhookGet(t, h, tc.params)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "forbidden", rec.Body.String())
		})
	}
}

func TestWebhookReceive(t *testing.T) {
	t.Parallel()

	processor := &recordingProcessor{}
	h := NewWebhookHandler(nil, processor, "secret-token")

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"field": "messages", "value": {
			"messages": [{"from": "918097296453", "id": "wamid.1", "type": "text", "text": {"body": "hi"}}]
		}}]}]
	}`
	rec := webhookPost(t, h, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	require.Len(t, processor.payloads, 1)
	require.Len(t, processor.payloads[0].Entry, 1)
}

func TestWebhookReceiveMalformedBodyStillAcks(t *testing.T) {
	t.Parallel()

	processor := &recordingProcessor{}
	h := NewWebhookHandler(nil, processor, "secret-token")

	rec := webhookPost(t, h, "{not json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Empty(t, processor.payloads)
}

func TestWebhookReceiveProcessorFailureStillAcks(t *testing.T) {
	t.Parallel()

	processor := &recordingProcessor{err: errors.New("db down")}
	h := NewWebhookHandler(nil, processor, "secret-token")

	rec := webhookPost(t, h, `{"object":"whatsapp_business_account","entry":[]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
