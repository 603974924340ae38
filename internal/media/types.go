// Package media offloads provider-hosted media from ephemeral download
// URLs into durable object storage under deterministic keys.
package media

import (
	"context"
	"io"
	"time"

	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

// SignedURLTTL bounds how long an issued access URL stays valid.
const SignedURLTTL = 24 * time.Hour

// ObjectStore abstracts the S3-compatible backend.
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) error
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Fetcher resolves and downloads provider media. Implemented by the
// whatsapp client.
type Fetcher interface {
	ResolveMediaURL(ctx context.Context, creds whatsapp.Credentials, mediaID string) (string, error)
	DownloadMedia(ctx context.Context, creds whatsapp.Credentials, url string) ([]byte, string, error)
}

// OffloadInput identifies one provider media object and the credential
// used to fetch it.
type OffloadInput struct {
	MediaID       string
	CounterpartID string
	MimeType      string
	Credentials   whatsapp.Credentials
}
