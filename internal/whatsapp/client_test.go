package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds() Credentials {
	return Credentials{AccessToken: "token-1", PhoneNumberID: "5550001"}
}

func TestClientSend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/5550001/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var req SendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "whatsapp", req.MessagingProduct)
		assert.Equal(t, "918097296453", req.To)

		_ = json.NewEncoder(w).Encode(SendResponse{
			Messages: []SentMessage{{ID: "wamid.ABC"}},
		})
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "v20.0", time.Second)
	id, err := client.Send(context.Background(), testCreds(), SendRequest{
		To:   "918097296453",
		Type: "text",
		Text: &TextBody{Body: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", id)
}

func TestClientSendProviderError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"recipient not on whatsapp","code":131026}}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "v20.0", time.Second)
	_, err := client.Send(context.Background(), testCreds(), SendRequest{To: "918097296453", Type: "text", Text: &TextBody{Body: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipient not on whatsapp")
}

func TestClientSendDegradedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[]}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "v20.0", time.Second)
	id, err := client.Send(context.Background(), testCreds(), SendRequest{To: "918097296453", Type: "text", Text: &TextBody{Body: "x"}})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestClientSendNotConfigured(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, "http://unused", "v20.0", time.Second)
	_, err := client.Send(context.Background(), Credentials{}, SendRequest{To: "918097296453", Type: "text"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClientResolveAndDownloadMedia(t *testing.T) {
	t.Parallel()

	payload := []byte("media-bytes")
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/v20.0/media-77", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(MediaURLResponse{URL: srv.URL + "/download/media-77", MimeType: "image/jpeg", ID: "media-77"})
	})
	mux.HandleFunc("/download/media-77", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	})

	client := NewClient(nil, srv.URL, "v20.0", time.Second)
	url, err := client.ResolveMediaURL(context.Background(), testCreds(), "media-77")
	require.NoError(t, err)

	data, contentType, err := client.DownloadMedia(context.Background(), testCreds(), url)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestClientResolveMediaURLFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"media not found"}}`))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, "v20.0", time.Second)
	_, err := client.ResolveMediaURL(context.Background(), testCreds(), "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media not found")
}
