// Package inbound turns webhook payloads into stored conversation rows:
// sender registration, content normalization, media offload, persistence.
package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wabridgehq/wabridge/internal/media"
	"github.com/wabridgehq/wabridge/internal/message"
	"github.com/wabridgehq/wabridge/internal/settings"
	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

// AccountDirectory registers counterpart contacts on first inbound message.
type AccountDirectory interface {
	Upsert(ctx context.Context, id, displayName string) error
}

// SettingsReader loads the receiver's send credential for media offload.
type SettingsReader interface {
	Get(ctx context.Context, accountID string) (settings.Settings, error)
}

// MediaOffloader moves provider media into durable storage.
type MediaOffloader interface {
	Offload(ctx context.Context, input media.OffloadInput) (string, error)
}

// MessageWriter persists normalized rows.
type MessageWriter interface {
	Persist(ctx context.Context, msg message.Message) error
}

// Processor ingests one webhook payload at a time.
type Processor struct {
	directory AccountDirectory
	settings  SettingsReader
	media     MediaOffloader
	messages  MessageWriter
	resolver  ReceiverResolver
	logger    *slog.Logger
}

func NewProcessor(log *slog.Logger, directory AccountDirectory, settingsReader SettingsReader, offloader MediaOffloader, messages MessageWriter, resolver ReceiverResolver) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		directory: directory,
		settings:  settingsReader,
		media:     offloader,
		messages:  messages,
		resolver:  resolver,
		logger:    log.With(slog.String("service", "inbound")),
	}
}

// Process walks every message in the payload. Failures on one message are
// logged and the rest still process; the webhook is always acknowledged, so
// nothing here is allowed to turn into a retry storm at the provider.
func (p *Processor) Process(ctx context.Context, payload whatsapp.WebhookPayload) error {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			names := contactNames(change.Value.Contacts)
			for _, msg := range change.Value.Messages {
				if err := p.processOne(ctx, msg, names); err != nil {
					p.logger.Error("inbound message failed",
						slog.String("message_id", msg.ID),
						slog.String("from", msg.From),
						slog.Any("error", err),
					)
				}
			}
		}
	}
	return nil
}

func (p *Processor) processOne(ctx context.Context, msg whatsapp.InboundMessage, names map[string]string) error {
	sender := whatsapp.NormalizePhone(msg.From)
	if err := whatsapp.ValidatePhone(sender); err != nil {
		return fmt.Errorf("sender %q: %w", msg.From, err)
	}

	displayName := names[msg.From]
	if displayName == "" {
		displayName = names[sender]
	}
	// No profile delivered at all: the phone number stands in as the name.
	if displayName == "" {
		displayName = sender
	}
	if err := p.directory.Upsert(ctx, sender, displayName); err != nil {
		return fmt.Errorf("register sender: %w", err)
	}

	receiver, err := p.resolver.Resolve(ctx, sender)
	if err != nil {
		return fmt.Errorf("resolve receiver: %w", err)
	}

	content, msgType, mediaMeta := normalize(msg)
	if msgType == "" {
		p.logger.Warn("unsupported inbound message type",
			slog.String("message_id", msg.ID),
			slog.String("type", msg.Type),
		)
		msgType = message.Type(msg.Type)
	}

	if mediaMeta != nil && mediaMeta.MediaID != "" {
		p.offload(ctx, receiver, sender, mediaMeta)
	}

	id := msg.ID
	ts := parseTimestamp(msg.Timestamp)
	if strings.TrimSpace(id) == "" {
		id = message.NewLocalID(ts)
	}

	row := message.Message{
		ID:            id,
		CounterpartID: sender,
		LocalPartyID:  receiver,
		SentByLocal:   false,
		Content:       content,
		Type:          msgType,
		Media:         mediaMeta,
		SentAt:        ts,
		Read:          false,
	}
	if err := p.messages.Persist(ctx, row); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// offload attempts to move the media into durable storage. Failure leaves
// the message persistable with the provider media id only.
func (p *Processor) offload(ctx context.Context, receiver, sender string, meta *message.MediaMetadata) {
	cfg, err := p.settings.Get(ctx, receiver)
	if err != nil {
		p.logger.Warn("settings lookup for media offload failed",
			slog.String("account_id", receiver),
			slog.Any("error", err),
		)
		return
	}
	if !cfg.Configured() {
		return
	}
	url, err := p.media.Offload(ctx, media.OffloadInput{
		MediaID:       meta.MediaID,
		CounterpartID: sender,
		MimeType:      meta.MimeType,
		Credentials:   cfg.Credentials(),
	})
	if err != nil {
		p.logger.Warn("media offload failed",
			slog.String("media_id", meta.MediaID),
			slog.Any("error", err),
		)
		return
	}
	now := time.Now().UTC()
	meta.StorageURL = url
	meta.Uploaded = true
	meta.UploadedAt = &now
}

// normalize maps the provider's tagged union onto stored content. An empty
// returned type marks an unsupported variant.
func normalize(msg whatsapp.InboundMessage) (string, message.Type, *message.MediaMetadata) {
	switch msg.Type {
	case "text":
		body := ""
		if msg.Text != nil {
			body = msg.Text.Body
		}
		return body, message.TypeText, nil

	case "image":
		meta, caption := mediaMeta(msg.Image)
		return captionOr(caption, "[Image]"), message.TypeImage, meta

	case "video":
		meta, caption := mediaMeta(msg.Video)
		return captionOr(caption, "[Video]"), message.TypeVideo, meta

	case "document":
		if msg.Document == nil {
			return "[Document]", message.TypeDocument, nil
		}
		meta := &message.MediaMetadata{
			MediaID:  msg.Document.ID,
			MimeType: msg.Document.MimeType,
			SHA256:   msg.Document.SHA256,
			Filename: msg.Document.Filename,
			Caption:  msg.Document.Caption,
		}
		content := "[Document]"
		if msg.Document.Filename != "" {
			content = "[Document: " + msg.Document.Filename + "]"
		}
		return content, message.TypeDocument, meta

	case "audio":
		content := "[Audio]"
		var meta *message.MediaMetadata
		if msg.Audio != nil {
			if msg.Audio.Voice {
				content = "[Voice Message]"
			}
			meta = &message.MediaMetadata{
				MediaID:  msg.Audio.ID,
				MimeType: msg.Audio.MimeType,
				SHA256:   msg.Audio.SHA256,
			}
		}
		return content, message.TypeAudio, meta

	case "sticker":
		var meta *message.MediaMetadata
		if msg.Sticker != nil {
			meta = &message.MediaMetadata{
				MediaID:  msg.Sticker.ID,
				MimeType: msg.Sticker.MimeType,
				SHA256:   msg.Sticker.SHA256,
			}
		}
		return "[Sticker]", message.TypeSticker, meta

	default:
		return "[Unsupported message type: " + msg.Type + "]", "", nil
	}
}

func mediaMeta(content *whatsapp.MediaContent) (*message.MediaMetadata, string) {
	if content == nil {
		return nil, ""
	}
	return &message.MediaMetadata{
		MediaID:  content.ID,
		MimeType: content.MimeType,
		SHA256:   content.SHA256,
		Caption:  content.Caption,
	}, content.Caption
}

func captionOr(caption, fallback string) string {
	if strings.TrimSpace(caption) != "" {
		return caption
	}
	return fallback
}

func contactNames(contacts []whatsapp.Contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.WaID == "" {
			continue
		}
		if c.Profile.Name != "" {
			names[c.WaID] = c.Profile.Name
		} else {
			names[c.WaID] = c.WaID
		}
	}
	return names
}

// parseTimestamp reads the provider's unix-seconds string, falling back to
// the current time when it is absent or malformed.
func parseTimestamp(raw string) time.Time {
	if secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Now().UTC().Truncate(time.Second)
}
