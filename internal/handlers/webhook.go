package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

// maxWebhookBody caps what the provider may post in one delivery.
const maxWebhookBody int64 = 1 << 20

// PayloadProcessor ingests one parsed webhook delivery.
type PayloadProcessor interface {
	Process(ctx context.Context, payload whatsapp.WebhookPayload) error
}

// WebhookHandler terminates the provider's webhook: subscription
// verification on GET and message delivery on POST.
type WebhookHandler struct {
	processor   PayloadProcessor
	verifyToken string
	logger      *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, processor PayloadProcessor, verifyToken string) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		processor:   processor,
		verifyToken: verifyToken,
		logger:      log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook", h.Verify)
	e.POST("/webhook", h.Receive)
}

// Verify answers the provider's subscription handshake by echoing the
// challenge when the verify token matches.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		return c.String(http.StatusOK, challenge)
	}
	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return c.String(http.StatusForbidden, "forbidden")
}

// Receive ingests a delivery. The response is always 200 "OK" regardless of
// processing outcome; anything else makes the provider redeliver the same
// payload indefinitely.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("read webhook body failed", slog.Any("error", err))
		return c.String(http.StatusOK, "OK")
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("unparsable webhook payload", slog.Any("error", err))
		return c.String(http.StatusOK, "OK")
	}

	if err := h.processor.Process(c.Request().Context(), payload); err != nil {
		h.logger.Error("webhook processing failed", slog.Any("error", err))
	}
	return c.String(http.StatusOK, "OK")
}
