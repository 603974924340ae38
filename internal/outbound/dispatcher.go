// Package outbound builds and sends single-recipient provider requests and
// maps outcomes onto stored message rows.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wabridgehq/wabridge/internal/message"
	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

// ErrInvalidPayload marks a payload rejected before any network call.
var ErrInvalidPayload = errors.New("invalid payload")

// PayloadKind selects the outbound message variant.
type PayloadKind string

const (
	KindText     PayloadKind = "text"
	KindTemplate PayloadKind = "template"
)

// Payload is the logical content of one send: either plain text or a
// template with variable groups.
type Payload struct {
	Kind     PayloadKind
	Text     string
	Template *whatsapp.TemplateData
}

// Validate rejects payloads that can never be sent, so callers can fail
// fast before fan-out or network work.
func (p Payload) Validate() error {
	switch p.Kind {
	case KindText:
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("%w: text body is required", ErrInvalidPayload)
		}
	case KindTemplate:
		if p.Template == nil || strings.TrimSpace(p.Template.Name) == "" {
			return fmt.Errorf("%w: template name is required", ErrInvalidPayload)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, p.Kind)
	}
	return nil
}

// BroadcastTag links a stored row back to its broadcast group and event.
type BroadcastTag struct {
	GroupID     string
	BroadcastID string
}

// DispatchInput carries everything one send needs. Credentials are threaded
// in explicitly; the dispatcher holds no ambient account state.
type DispatchInput struct {
	Recipient    string
	LocalPartyID string
	Payload      Payload
	Credentials  whatsapp.Credentials
	Timestamp    time.Time
	Broadcast    *BroadcastTag
}

// Sender is the provider call. Implemented by the whatsapp client.
type Sender interface {
	Send(ctx context.Context, creds whatsapp.Credentials, req whatsapp.SendRequest) (string, error)
}

// MessageWriter persists the derived message row.
type MessageWriter interface {
	Persist(ctx context.Context, msg message.Message) error
}

// Dispatcher sends one message to one recipient.
type Dispatcher struct {
	sender   Sender
	messages MessageWriter
	logger   *slog.Logger
}

func NewDispatcher(log *slog.Logger, sender Sender, messages MessageWriter) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sender:   sender,
		messages: messages,
		logger:   log.With(slog.String("service", "outbound")),
	}
}

// Dispatch validates the recipient, sends through the provider, and stores
// the resulting row. Provider failure returns an error and persists
// nothing. Persistence failure after a provider success is logged only:
// the message genuinely left the system.
func (d *Dispatcher) Dispatch(ctx context.Context, input DispatchInput) (message.Message, error) {
	recipient := whatsapp.NormalizePhone(input.Recipient)
	if err := whatsapp.ValidatePhone(recipient); err != nil {
		return message.Message{}, err
	}
	req, content, msgType, media, err := buildRequest(recipient, input.Payload)
	if err != nil {
		return message.Message{}, err
	}

	providerID, err := d.sender.Send(ctx, input.Credentials, req)
	if err != nil {
		return message.Message{}, err
	}

	ts := input.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC().Truncate(time.Second)
	}
	id := providerID
	if strings.TrimSpace(id) == "" {
		id = message.NewLocalID(ts)
	}
	if input.Broadcast != nil {
		if media == nil {
			media = &message.MediaMetadata{}
		}
		media.BroadcastGroupID = input.Broadcast.GroupID
		media.BroadcastID = input.Broadcast.BroadcastID
	}

	msg := message.Message{
		ID:            id,
		CounterpartID: recipient,
		LocalPartyID:  input.LocalPartyID,
		SentByLocal:   true,
		Content:       content,
		Type:          msgType,
		Media:         media,
		SentAt:        ts,
		Read:          true,
	}
	if err := d.messages.Persist(ctx, msg); err != nil {
		d.logger.Warn("persist after successful send failed",
			slog.String("message_id", msg.ID),
			slog.String("recipient", recipient),
			slog.Any("error", err),
		)
	}
	return msg, nil
}

func buildRequest(recipient string, payload Payload) (whatsapp.SendRequest, string, message.Type, *message.MediaMetadata, error) {
	if err := payload.Validate(); err != nil {
		return whatsapp.SendRequest{}, "", "", nil, err
	}
	switch payload.Kind {
	case KindText:
		req := whatsapp.SendRequest{
			To:   recipient,
			Type: "text",
			Text: &whatsapp.TextBody{Body: payload.Text},
		}
		return req, payload.Text, message.TypeText, nil, nil

	case KindTemplate:
		tmpl := payload.Template
		language := tmpl.LanguageCode
		if strings.TrimSpace(language) == "" {
			language = "en_US"
		}
		req := whatsapp.SendRequest{
			To:   recipient,
			Type: "template",
			Template: &whatsapp.TemplatePayload{
				Name:       tmpl.Name,
				Language:   whatsapp.Language{Code: language},
				Components: whatsapp.BuildComponents(*tmpl),
			},
		}
		media := &message.MediaMetadata{
			Template: &message.TemplateInfo{
				Name:       tmpl.Name,
				Language:   language,
				HeaderVars: tmpl.HeaderVars,
				BodyVars:   tmpl.BodyVars,
				FooterVars: tmpl.FooterVars,
			},
		}
		return req, tmpl.DisplayBody(), message.TypeTemplate, media, nil

	default:
		return whatsapp.SendRequest{}, "", "", nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, payload.Kind)
	}
}
