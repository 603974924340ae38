package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wabridgehq/wabridge/internal/accounts"
	"github.com/wabridgehq/wabridge/internal/auth"
	"github.com/wabridgehq/wabridge/internal/message"
	"github.com/wabridgehq/wabridge/internal/outbound"
	"github.com/wabridgehq/wabridge/internal/settings"
	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

// MessagesHandler exposes single sends, the contact list, and conversation
// threads.
type MessagesHandler struct {
	dispatcher *outbound.Dispatcher
	settings   *settings.Service
	accounts   *accounts.Service
	messages   *message.DBService
	logger     *slog.Logger
}

func NewMessagesHandler(log *slog.Logger, dispatcher *outbound.Dispatcher, settingsService *settings.Service, accountService *accounts.Service, messageService *message.DBService) *MessagesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessagesHandler{
		dispatcher: dispatcher,
		settings:   settingsService,
		accounts:   accountService,
		messages:   messageService,
		logger:     log.With(slog.String("handler", "messages")),
	}
}

func (h *MessagesHandler) Register(e *echo.Echo) {
	e.POST("/messages", h.Send)
	e.GET("/messages/:counterpart", h.Thread)
	e.POST("/messages/:counterpart/read", h.MarkRead)
	e.GET("/contacts", h.Contacts)
}

// templateBody is the template variant of an outbound request. Variable
// maps key placeholder names to substituted values.
type templateBody struct {
	Name       string            `json:"name" validate:"required"`
	Language   string            `json:"language"`
	BodyText   string            `json:"body_text"`
	HeaderVars map[string]string `json:"header_vars"`
	BodyVars   map[string]string `json:"body_vars"`
	FooterVars map[string]string `json:"footer_vars"`
}

type sendMessageRequest struct {
	To       string        `json:"to" validate:"required"`
	Text     string        `json:"text"`
	Template *templateBody `json:"template"`
}

// payload converts the wire request to a dispatch payload.
func (r sendMessageRequest) payload() outbound.Payload {
	if r.Template != nil {
		return outbound.Payload{
			Kind: outbound.KindTemplate,
			Template: &whatsapp.TemplateData{
				Name:         r.Template.Name,
				LanguageCode: r.Template.Language,
				BodyText:     r.Template.BodyText,
				HeaderVars:   r.Template.HeaderVars,
				BodyVars:     r.Template.BodyVars,
				FooterVars:   r.Template.FooterVars,
			},
		}
	}
	return outbound.Payload{Kind: outbound.KindText, Text: r.Text}
}

func (h *MessagesHandler) Send(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	cfg, err := h.settings.Get(ctx, accountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !cfg.Configured() {
		return echo.NewHTTPError(http.StatusPreconditionFailed, "whatsapp credentials not configured")
	}

	msg, err := h.dispatcher.Dispatch(ctx, outbound.DispatchInput{
		Recipient:    req.To,
		LocalPartyID: accountID,
		Payload:      req.payload(),
		Credentials:  cfg.Credentials(),
	})
	if err != nil {
		switch {
		case errors.Is(err, whatsapp.ErrInvalidPhone), errors.Is(err, outbound.ErrInvalidPayload):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *MessagesHandler) Thread(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	counterpart := whatsapp.NormalizePhone(c.Param("counterpart"))
	ctx := c.Request().Context()
	msgs, err := h.messages.ListThread(ctx, accountID, counterpart)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// Fetching a thread counts as reading it.
	if err := h.messages.MarkThreadRead(ctx, accountID, counterpart); err != nil {
		h.logger.Warn("mark thread read failed",
			slog.String("counterpart_id", counterpart),
			slog.Any("error", err),
		)
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"counterpart_id": counterpart,
		"items":          msgs,
	})
}

func (h *MessagesHandler) MarkRead(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	counterpart := whatsapp.NormalizePhone(c.Param("counterpart"))
	if err := h.messages.MarkThreadRead(c.Request().Context(), accountID, counterpart); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *MessagesHandler) Contacts(c echo.Context) error {
	if _, err := auth.AccountIDFromContext(c); err != nil {
		return err
	}
	items, err := h.accounts.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []accounts.Account{}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}
