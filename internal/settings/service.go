// Package settings stores per-account WhatsApp credentials and options.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

const DefaultAPIVersion = "v20.0"

// Settings holds the send credential and related options for one account.
type Settings struct {
	AccountID       string `json:"account_id"`
	AccessToken     string `json:"access_token"`
	PhoneNumberID   string `json:"phone_number_id"`
	APIVersion      string `json:"api_version"`
	BusinessOwnerID string `json:"business_owner_id"`
}

// Credentials converts to the client credential value.
func (s Settings) Credentials() whatsapp.Credentials {
	return whatsapp.Credentials{AccessToken: s.AccessToken, PhoneNumberID: s.PhoneNumberID}
}

// Configured reports whether the account can send.
func (s Settings) Configured() bool {
	return s.Credentials().Configured()
}

type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "settings")),
	}
}

// Get returns the account's settings, or defaults when no row exists.
func (s *Service) Get(ctx context.Context, accountID string) (Settings, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT account_id, access_token, phone_number_id, api_version, business_owner_id
		FROM account_settings WHERE account_id = $1`, accountID)
	settings := Settings{AccountID: accountID, APIVersion: DefaultAPIVersion}
	err := row.Scan(&settings.AccountID, &settings.AccessToken, &settings.PhoneNumberID,
		&settings.APIVersion, &settings.BusinessOwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings, nil
		}
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if strings.TrimSpace(settings.APIVersion) == "" {
		settings.APIVersion = DefaultAPIVersion
	}
	return settings, nil
}

// Upsert writes the account's settings row.
func (s *Service) Upsert(ctx context.Context, settings Settings) (Settings, error) {
	if strings.TrimSpace(settings.AccountID) == "" {
		return Settings{}, fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(settings.APIVersion) == "" {
		settings.APIVersion = DefaultAPIVersion
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_settings (account_id, access_token, phone_number_id, api_version, business_owner_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (account_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			phone_number_id = EXCLUDED.phone_number_id,
			api_version = EXCLUDED.api_version,
			business_owner_id = EXCLUDED.business_owner_id,
			updated_at = now()`,
		settings.AccountID, settings.AccessToken, settings.PhoneNumberID,
		settings.APIVersion, settings.BusinessOwnerID,
	)
	if err != nil {
		return Settings{}, fmt.Errorf("upsert settings: %w", err)
	}
	return settings, nil
}

// BusinessOwner returns the first configured business-owner id across all
// settings rows, or empty when none is set.
func (s *Service) BusinessOwner(ctx context.Context) (string, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT business_owner_id FROM account_settings
		WHERE business_owner_id <> ''
		ORDER BY updated_at DESC LIMIT 1`)
	var owner string
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("business owner: %w", err)
	}
	return owner, nil
}
