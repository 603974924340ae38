// Package message defines the canonical message record shared by the
// inbound and outbound pipelines, and its persistence service.
package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies a message for display dispatch.
type Type string

const (
	TypeText     Type = "text"
	TypeImage    Type = "image"
	TypeDocument Type = "document"
	TypeAudio    Type = "audio"
	TypeVideo    Type = "video"
	TypeSticker  Type = "sticker"
	TypeTemplate Type = "template"
)

// TemplateInfo preserves the template structure for rich re-display.
type TemplateInfo struct {
	Name       string            `json:"name"`
	Language   string            `json:"language,omitempty"`
	HeaderVars map[string]string `json:"header_vars,omitempty"`
	BodyVars   map[string]string `json:"body_vars,omitempty"`
	FooterVars map[string]string `json:"footer_vars,omitempty"`
}

// MediaMetadata is the optional structured payload attached to media and
// template messages. Broadcast rows carry the group/broadcast tags here,
// which is the sole linkage used for reconstruction.
type MediaMetadata struct {
	MediaID          string        `json:"media_id,omitempty"`
	MimeType         string        `json:"mime_type,omitempty"`
	SHA256           string        `json:"sha256,omitempty"`
	Filename         string        `json:"filename,omitempty"`
	Caption          string        `json:"caption,omitempty"`
	StorageURL       string        `json:"storage_url,omitempty"`
	Uploaded         bool          `json:"uploaded,omitempty"`
	UploadedAt       *time.Time    `json:"uploaded_at,omitempty"`
	Template         *TemplateInfo `json:"template,omitempty"`
	BroadcastGroupID string        `json:"broadcast_group_id,omitempty"`
	BroadcastID      string        `json:"broadcast_id,omitempty"`
}

// Message is one stored conversation row. For inbound rows CounterpartID is
// the protocol "from" and LocalPartyID the resolved receiver; outbound rows
// invert the roles. Rows are immutable after creation except for the read
// flag.
type Message struct {
	ID            string         `json:"id"`
	CounterpartID string         `json:"counterpart_id"`
	LocalPartyID  string         `json:"local_party_id"`
	SentByLocal   bool           `json:"sent_by_local"`
	Content       string         `json:"content"`
	Type          Type           `json:"message_type"`
	Media         *MediaMetadata `json:"media_metadata,omitempty"`
	SentAt        time.Time      `json:"sent_at"`
	Read          bool           `json:"read"`
}

// NewLocalID synthesizes a message id when the provider supplies none.
// Time plus random entropy keeps collision probability negligible.
func NewLocalID(now time.Time) string {
	return fmt.Sprintf("local-%d-%s", now.UnixNano(), uuid.NewString()[:8])
}
