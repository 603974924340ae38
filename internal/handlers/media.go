package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wabridgehq/wabridge/internal/auth"
	"github.com/wabridgehq/wabridge/internal/media"
)

// MediaHandler refreshes expired access URLs and deletes stored objects.
type MediaHandler struct {
	media  *media.Service
	logger *slog.Logger
}

func NewMediaHandler(log *slog.Logger, mediaService *media.Service) *MediaHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MediaHandler{
		media:  mediaService,
		logger: log.With(slog.String("handler", "media")),
	}
}

func (h *MediaHandler) Register(e *echo.Echo) {
	e.POST("/media/refresh", h.Refresh)
	e.DELETE("/media", h.Delete)
}

type mediaRequest struct {
	CounterpartID string `json:"counterpart_id" validate:"required"`
	MediaID       string `json:"media_id" validate:"required"`
	MimeType      string `json:"mime_type"`
}

// Refresh re-signs the URL of an already-stored object. Signed URLs expire
// after a day, so clients come back here for old media.
func (h *MediaHandler) Refresh(c echo.Context) error {
	if _, err := auth.AccountIDFromContext(c); err != nil {
		return err
	}
	var req mediaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	url, err := h.media.RegenerateURL(c.Request().Context(), req.CounterpartID, req.MediaID, req.MimeType)
	if err != nil {
		return mediaError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (h *MediaHandler) Delete(c echo.Context) error {
	if _, err := auth.AccountIDFromContext(c); err != nil {
		return err
	}
	var req mediaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.media.Remove(c.Request().Context(), req.CounterpartID, req.MediaID, req.MimeType); err != nil {
		return mediaError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func mediaError(err error) error {
	switch {
	case errors.Is(err, media.ErrObjectNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, media.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
