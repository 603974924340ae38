// Package whatsapp speaks the Meta WhatsApp Cloud API: webhook payload
// shapes, the outbound send protocol, and template parameter handling.
package whatsapp

// WebhookPayload is the top-level webhook delivery.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents one business account entry.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change wraps a single change notification.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the message data of one change.
type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
}

// Metadata describes the receiving phone number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is a sender profile delivered alongside messages.
type Contact struct {
	Profile ContactProfile `json:"profile"`
	WaID    string         `json:"wa_id"`
}

// ContactProfile carries the display name.
type ContactProfile struct {
	Name string `json:"name"`
}

// InboundMessage is one incoming message. Exactly one of the typed
// sub-objects is present, selected by Type.
type InboundMessage struct {
	From      string           `json:"from"`
	ID        string           `json:"id"`
	Timestamp string           `json:"timestamp"`
	Type      string           `json:"type"`
	Text      *TextContent     `json:"text,omitempty"`
	Image     *MediaContent    `json:"image,omitempty"`
	Video     *MediaContent    `json:"video,omitempty"`
	Document  *DocumentContent `json:"document,omitempty"`
	Audio     *AudioContent    `json:"audio,omitempty"`
	Sticker   *StickerContent  `json:"sticker,omitempty"`
}

// TextContent holds a text message body.
type TextContent struct {
	Body string `json:"body"`
}

// MediaContent is shared by image and video messages.
type MediaContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Caption  string `json:"caption,omitempty"`
}

// DocumentContent adds the original filename.
type DocumentContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// AudioContent flags voice notes separately from plain audio.
type AudioContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Voice    bool   `json:"voice,omitempty"`
}

// StickerContent has no caption on the wire.
type StickerContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Animated bool   `json:"animated,omitempty"`
}

// --- outbound send protocol ---

// SendRequest is the POST body for {apiBase}/{version}/{phoneNumberID}/messages.
type SendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *TextBody        `json:"text,omitempty"`
	Template         *TemplatePayload `json:"template,omitempty"`
}

// TextBody is the text variant of a send request.
type TextBody struct {
	Body string `json:"body"`
}

// TemplatePayload is the template variant of a send request.
type TemplatePayload struct {
	Name       string      `json:"name"`
	Language   Language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

// Language selects the template locale.
type Language struct {
	Code string `json:"code"`
}

// Component is one header/body/footer parameter block.
type Component struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Parameter is a single substituted template value.
type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendResponse is the provider acknowledgment of a send.
type SendResponse struct {
	MessagingProduct string        `json:"messaging_product"`
	Messages         []SentMessage `json:"messages"`
}

// SentMessage carries the provider-assigned message id.
type SentMessage struct {
	ID string `json:"id"`
}

// MediaURLResponse resolves a media id to a short-lived download URL.
type MediaURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

type apiErrorResponse struct {
	Error apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}
