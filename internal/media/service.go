package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Service performs the resolve → download → store offload and issues
// time-bounded access URLs for stored objects.
type Service struct {
	store   ObjectStore
	fetcher Fetcher
	logger  *slog.Logger
}

// NewService creates a media service over the given store and fetcher.
func NewService(log *slog.Logger, store ObjectStore, fetcher Fetcher) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   store,
		fetcher: fetcher,
		logger:  log.With(slog.String("service", "media")),
	}
}

// StorageKey derives the deterministic object key for a media item.
// Identical inputs always map to the same key, so repeated offload attempts
// overwrite instead of duplicating.
func StorageKey(counterpartID, mediaID, mimeType string) string {
	return counterpartID + "/" + mediaID + extensionFromMime(mimeType)
}

// Offload fetches the provider media and stores it durably, returning a
// signed access URL. Failures are reported to the caller as errors; the
// caller treats them as "media unavailable" rather than aborting ingestion.
func (s *Service) Offload(ctx context.Context, input OffloadInput) (string, error) {
	if s.store == nil {
		return "", ErrStoreUnavailable
	}
	if strings.TrimSpace(input.MediaID) == "" {
		return "", fmt.Errorf("media id is required")
	}
	if strings.TrimSpace(input.CounterpartID) == "" {
		return "", fmt.Errorf("counterpart id is required")
	}

	url, err := s.fetcher.ResolveMediaURL(ctx, input.Credentials, input.MediaID)
	if err != nil {
		return "", fmt.Errorf("resolve media url: %w", err)
	}
	data, contentType, err := s.fetcher.DownloadMedia(ctx, input.Credentials, url)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}

	mimeType := input.MimeType
	if strings.TrimSpace(mimeType) == "" {
		mimeType = contentType
	}
	key := StorageKey(input.CounterpartID, input.MediaID, mimeType)
	metadata := map[string]string{
		"provider-media-id": input.MediaID,
		"counterpart-id":    input.CounterpartID,
		"uploaded-at":       time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType, metadata); err != nil {
		return "", fmt.Errorf("store media: %w", err)
	}

	signed, err := s.store.SignedURL(ctx, key, SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign media url: %w", err)
	}
	s.logger.Debug("media offloaded",
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return signed, nil
}

// RegenerateURL issues a fresh signed URL for an already-stored object
// without re-uploading it.
func (s *Service) RegenerateURL(ctx context.Context, counterpartID, mediaID, mimeType string) (string, error) {
	if s.store == nil {
		return "", ErrStoreUnavailable
	}
	key := StorageKey(counterpartID, mediaID, mimeType)
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check object: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	signed, err := s.store.SignedURL(ctx, key, SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign media url: %w", err)
	}
	return signed, nil
}

// Remove deletes the stored object behind the deterministic key.
func (s *Service) Remove(ctx context.Context, counterpartID, mediaID, mimeType string) error {
	if s.store == nil {
		return ErrStoreUnavailable
	}
	key := StorageKey(counterpartID, mediaID, mimeType)
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// extensionFromMime maps a MIME type to a file extension; unknown types
// fall back to a generic binary extension. Parameters after ";" are ignored.
func extensionFromMime(mime string) string {
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/amr":
		return ".amr"
	case "audio/aac":
		return ".aac"
	case "video/mp4":
		return ".mp4"
	case "video/3gpp":
		return ".3gp"
	case "video/webm":
		return ".webm"
	case "application/pdf":
		return ".pdf"
	case "application/msword":
		return ".doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "application/vnd.ms-excel":
		return ".xls"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return ".xlsx"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}
