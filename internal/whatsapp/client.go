package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	maxResponseBytes      int64 = 1 << 20  // 1 MiB
	maxMediaDownloadBytes int64 = 64 << 20 // 64 MiB
)

// ErrNotConfigured is returned when a send is attempted without credentials.
var ErrNotConfigured = errors.New("whatsapp credentials not configured")

// Credentials carries the per-account access token and sending number id.
// They are threaded into each call rather than held as process state.
type Credentials struct {
	AccessToken   string
	PhoneNumberID string
}

// Configured reports whether both the token and the number id are set.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.AccessToken) != "" && strings.TrimSpace(c.PhoneNumberID) != ""
}

// Client talks to the WhatsApp Cloud API.
type Client struct {
	apiBase    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Cloud API client. Every call runs under the given
// timeout in addition to the caller's context.
func NewClient(log *slog.Logger, apiBase, apiVersion string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "whatsapp")),
	}
}

// Send posts a message request and returns the provider-assigned message id.
// A degraded success response may yield an empty id with a nil error.
func (c *Client) Send(ctx context.Context, creds Credentials, req SendRequest) (string, error) {
	if !creds.Configured() {
		return "", ErrNotConfigured
	}
	req.MessagingProduct = "whatsapp"
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.apiBase, c.apiVersion, creds.PhoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read send response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("provider rejected send: %s", providerErrorText(resp.StatusCode, respBody))
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		c.logger.Warn("unparsable send response", slog.Int("status", resp.StatusCode), slog.Any("error", err))
		return "", nil
	}
	if len(sendResp.Messages) == 0 {
		return "", nil
	}
	return sendResp.Messages[0].ID, nil
}

// ResolveMediaURL resolves a provider media id to its short-lived download URL.
func (c *Client) ResolveMediaURL(ctx context.Context, creds Credentials, mediaID string) (string, error) {
	if strings.TrimSpace(creds.AccessToken) == "" {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(mediaID) == "" {
		return "", fmt.Errorf("media id is required")
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.apiBase, c.apiVersion, mediaID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("resolve media url: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read media response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve media url: %s", providerErrorText(resp.StatusCode, respBody))
	}

	var mediaResp MediaURLResponse
	if err := json.Unmarshal(respBody, &mediaResp); err != nil {
		return "", fmt.Errorf("parse media response: %w", err)
	}
	if strings.TrimSpace(mediaResp.URL) == "" {
		return "", fmt.Errorf("media response has no url")
	}
	return mediaResp.URL, nil
}

// DownloadMedia fetches the bytes behind a resolved media URL. Returns the
// payload and the reported content type.
func (c *Client) DownloadMedia(ctx context.Context, creds Credentials, url string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download media: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read media body: %w", err)
	}
	if int64(len(data)) > maxMediaDownloadBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxMediaDownloadBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func providerErrorText(status int, body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && strings.TrimSpace(apiErr.Error.Message) != "" {
		return apiErr.Error.Message
	}
	return fmt.Sprintf("status %d", status)
}
