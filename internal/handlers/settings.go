package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wabridgehq/wabridge/internal/auth"
	"github.com/wabridgehq/wabridge/internal/settings"
)

// SettingsHandler reads and writes the caller's WhatsApp credential.
type SettingsHandler struct {
	settings *settings.Service
	logger   *slog.Logger
}

func NewSettingsHandler(log *slog.Logger, settingsService *settings.Service) *SettingsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SettingsHandler{
		settings: settingsService,
		logger:   log.With(slog.String("handler", "settings")),
	}
}

func (h *SettingsHandler) Register(e *echo.Echo) {
	e.GET("/settings", h.Get)
	e.PUT("/settings", h.Update)
}

type settingsResponse struct {
	AccountID       string `json:"account_id"`
	PhoneNumberID   string `json:"phone_number_id"`
	APIVersion      string `json:"api_version"`
	BusinessOwnerID string `json:"business_owner_id"`
	Configured      bool   `json:"configured"`
}

// The access token never leaves the server once stored.
func toSettingsResponse(s settings.Settings) settingsResponse {
	return settingsResponse{
		AccountID:       s.AccountID,
		PhoneNumberID:   s.PhoneNumberID,
		APIVersion:      s.APIVersion,
		BusinessOwnerID: s.BusinessOwnerID,
		Configured:      s.Configured(),
	}
}

func (h *SettingsHandler) Get(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	cfg, err := h.settings.Get(c.Request().Context(), accountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toSettingsResponse(cfg))
}

type updateSettingsRequest struct {
	AccessToken     string `json:"access_token" validate:"required"`
	PhoneNumberID   string `json:"phone_number_id" validate:"required"`
	APIVersion      string `json:"api_version"`
	BusinessOwnerID string `json:"business_owner_id"`
}

func (h *SettingsHandler) Update(c echo.Context) error {
	accountID, err := auth.AccountIDFromContext(c)
	if err != nil {
		return err
	}
	var req updateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg, err := h.settings.Upsert(c.Request().Context(), settings.Settings{
		AccountID:       accountID,
		AccessToken:     req.AccessToken,
		PhoneNumberID:   req.PhoneNumberID,
		APIVersion:      req.APIVersion,
		BusinessOwnerID: req.BusinessOwnerID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toSettingsResponse(cfg))
}
