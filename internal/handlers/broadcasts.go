package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wabridgehq/wabridge/internal/auth"
	"github.com/wabridgehq/wabridge/internal/broadcast"
	"github.com/wabridgehq/wabridge/internal/groups"
	"github.com/wabridgehq/wabridge/internal/message"
	"github.com/wabridgehq/wabridge/internal/outbound"
	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

// BroadcastsHandler fans messages out to group members and lists past
// broadcast events.
type BroadcastsHandler struct {
	broadcasts *broadcast.Service
	groups     *groups.Service
	messages   *message.DBService
	logger     *slog.Logger
}

func NewBroadcastsHandler(log *slog.Logger, broadcastService *broadcast.Service, groupService *groups.Service, messageService *message.DBService) *BroadcastsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BroadcastsHandler{
		broadcasts: broadcastService,
		groups:     groupService,
		messages:   messageService,
		logger:     log.With(slog.String("handler", "broadcasts")),
	}
}

func (h *BroadcastsHandler) Register(e *echo.Echo) {
	e.POST("/groups/:id/broadcast", h.Send)
	e.GET("/groups/:id/broadcasts", h.List)
}

type broadcastRequest struct {
	Text     string        `json:"text"`
	Template *templateBody `json:"template"`
}

func (r broadcastRequest) payload() outbound.Payload {
	return sendMessageRequest{Text: r.Text, Template: r.Template}.payload()
}

func (h *BroadcastsHandler) Send(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.broadcasts.Send(c.Request().Context(), accountID, c.Param("id"), req.payload())
	if err != nil {
		switch {
		case errors.Is(err, groups.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, groups.ErrNotOwner):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, broadcast.ErrNoMembers),
			errors.Is(err, outbound.ErrInvalidPayload),
			errors.Is(err, whatsapp.ErrInvalidPhone):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, broadcast.ErrNoCredential):
			return echo.NewHTTPError(http.StatusPreconditionFailed, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, result)
}

// List rebuilds broadcast events for the group from stored rows.
func (h *BroadcastsHandler) List(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	group, err := h.groups.Get(ctx, c.Param("id"))
	if err != nil {
		return groupError(err)
	}
	if group.OwnerID != accountID {
		return echo.NewHTTPError(http.StatusForbidden, groups.ErrNotOwner.Error())
	}

	rows, err := h.messages.ListByAccount(ctx, accountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	events := broadcast.Reconstruct(rows, group.ID)
	return c.JSON(http.StatusOK, map[string]any{"items": events})
}
