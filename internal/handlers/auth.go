package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wabridgehq/wabridge/internal/accounts"
	"github.com/wabridgehq/wabridge/internal/auth"
	"github.com/wabridgehq/wabridge/internal/config"
	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

// AuthHandler performs password login and token issuance.
type AuthHandler struct {
	accounts *accounts.Service
	cfg      config.AuthConfig
	logger   *slog.Logger
}

func NewAuthHandler(log *slog.Logger, accountService *accounts.Service, cfg config.Config) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		accounts: accountService,
		cfg:      cfg.Auth,
		logger:   log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
}

type loginRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Account   accounts.Account `json:"account"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id := whatsapp.NormalizePhone(req.PhoneNumber)
	account, err := h.accounts.Authenticate(c.Request().Context(), id, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid phone number or password")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	token, expiresAt, err := auth.GenerateToken(account.ID, h.cfg.JWTSecret, h.tokenTTL())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   account,
	})
}

func (h *AuthHandler) tokenTTL() time.Duration {
	ttl, err := time.ParseDuration(h.cfg.JWTExpiresIn)
	if err != nil || ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}
