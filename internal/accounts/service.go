// Package accounts is the account directory: authenticated local parties
// and counterpart contacts created on first inbound message.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// SystemAccountID is the synthesized placeholder receiver used when no
// real local account can be resolved for an inbound message.
const SystemAccountID = "system"

var (
	ErrNotFound           = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Account is one directory row. Counterpart contacts have no password hash.
type Account struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
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
		logger: log.With(slog.String("service", "accounts")),
	}
}

// Upsert creates the account on first contact or refreshes its last-active
// timestamp. The single statement keeps concurrent webhook deliveries for
// the same counterpart from racing a check-then-act sequence.
func (s *Service) Upsert(ctx context.Context, id, displayName string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("account id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			last_seen_at = now(),
			display_name = CASE
				WHEN accounts.display_name = '' AND EXCLUDED.display_name <> '' THEN EXCLUDED.display_name
				ELSE accounts.display_name
			END`,
		id, strings.TrimSpace(displayName),
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// Get returns one account by id.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, display_name, is_admin, created_at, last_seen_at
		FROM accounts WHERE id = $1`, id)
	var acc Account
	if err := row.Scan(&acc.ID, &acc.DisplayName, &acc.IsAdmin, &acc.CreatedAt, &acc.LastSeenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// List returns all accounts ordered by recent activity.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, display_name, is_admin, created_at, last_seen_at
		FROM accounts ORDER BY last_seen_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var acc Account
		if err := rows.Scan(&acc.ID, &acc.DisplayName, &acc.IsAdmin, &acc.CreatedAt, &acc.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// FirstOther returns the oldest account that is not the given id and holds
// login credentials. Used by receiver resolution as a fallback.
func (s *Service) FirstOther(ctx context.Context, excludeID string) (string, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id FROM accounts
		WHERE id <> $1 AND password_hash IS NOT NULL
		ORDER BY created_at ASC LIMIT 1`, excludeID)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("first other account: %w", err)
	}
	return id, nil
}

// EnsureSystemAccount creates the placeholder receiver on demand.
func (s *Service) EnsureSystemAccount(ctx context.Context) (string, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, display_name)
		VALUES ($1, 'System')
		ON CONFLICT (id) DO NOTHING`, SystemAccountID)
	if err != nil {
		return "", fmt.Errorf("ensure system account: %w", err)
	}
	return SystemAccountID, nil
}

// EnsureAdmin bootstraps the admin account from config when it is missing.
func (s *Service) EnsureAdmin(ctx context.Context, id, password, displayName string) error {
	id = strings.TrimSpace(id)
	if id == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("admin phone_number and password required in config")
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND password_hash IS NOT NULL)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if exists {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if displayName == "" {
		displayName = "Admin"
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts (id, display_name, password_hash, is_admin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (id) DO UPDATE SET password_hash = EXCLUDED.password_hash, is_admin = TRUE`,
		id, displayName, string(hashed),
	)
	if err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}
	s.logger.Info("admin account ready", slog.String("account_id", id))
	return nil
}

// Authenticate verifies a password login and returns the account.
func (s *Service) Authenticate(ctx context.Context, id, password string) (Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, display_name, is_admin, created_at, last_seen_at, password_hash
		FROM accounts WHERE id = $1`, id)
	var (
		acc  Account
		hash *string
	)
	if err := row.Scan(&acc.ID, &acc.DisplayName, &acc.IsAdmin, &acc.CreatedAt, &acc.LastSeenAt, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	if hash == nil {
		return Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return acc, nil
}
