// Package groups manages broadcast groups and their membership.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

var (
	ErrNotFound = errors.New("group not found")
	ErrNotOwner = errors.New("account does not own this group")
)

// Group is one broadcast group owned by an account.
type Group struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
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
		logger: log.With(slog.String("service", "groups")),
	}
}

// Create stores a new group for the owner.
func (s *Service) Create(ctx context.Context, ownerID, name, description string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("group name is required")
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO groups (owner_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, owner_id, name, description, created_at`,
		ownerID, name, strings.TrimSpace(description))
	return scanGroup(row)
}

// Get returns one group by id.
func (s *Service) Get(ctx context.Context, groupID string) (Group, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, created_at
		FROM groups WHERE id = $1`, groupID)
	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrNotFound
		}
		return Group{}, err
	}
	return group, nil
}

// ListByOwner returns the owner's groups, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, description, created_at
		FROM groups WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()
	var items []Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, group)
	}
	return items, rows.Err()
}

// Update renames a group. Owner-only.
func (s *Service) Update(ctx context.Context, ownerID, groupID, name, description string) (Group, error) {
	if _, err := s.requireOwner(ctx, ownerID, groupID); err != nil {
		return Group{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("group name is required")
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE groups SET name = $3, description = $4
		WHERE id = $1 AND owner_id = $2
		RETURNING id, owner_id, name, description, created_at`,
		groupID, ownerID, name, strings.TrimSpace(description))
	return scanGroup(row)
}

// Delete removes a group; membership rows cascade, message history stays.
func (s *Service) Delete(ctx context.Context, ownerID, groupID string) error {
	if _, err := s.requireOwner(ctx, ownerID, groupID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1 AND owner_id = $2`, groupID, ownerID)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// AddMember adds a normalized phone number to a group. Duplicate membership
// is absorbed by the unique constraint.
func (s *Service) AddMember(ctx context.Context, ownerID, groupID, memberID string) error {
	if _, err := s.requireOwner(ctx, ownerID, groupID); err != nil {
		return err
	}
	normalized := whatsapp.NormalizePhone(memberID)
	if err := whatsapp.ValidatePhone(normalized); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, member_id) DO NOTHING`,
		groupID, normalized)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember drops one member from a group. Owner-only.
func (s *Service) RemoveMember(ctx context.Context, ownerID, groupID, memberID string) error {
	if _, err := s.requireOwner(ctx, ownerID, groupID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		DELETE FROM group_members WHERE group_id = $1 AND member_id = $2`,
		groupID, whatsapp.NormalizePhone(memberID))
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// Members returns the member phone numbers of a group.
func (s *Service) Members(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT member_id FROM group_members WHERE group_id = $1 ORDER BY added_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var members []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (s *Service) requireOwner(ctx context.Context, ownerID, groupID string) (Group, error) {
	group, err := s.Get(ctx, groupID)
	if err != nil {
		return Group{}, err
	}
	if group.OwnerID != ownerID {
		return Group{}, ErrNotOwner
	}
	return group, nil
}

func scanGroup(row pgx.Row) (Group, error) {
	var group Group
	err := row.Scan(&group.ID, &group.OwnerID, &group.Name, &group.Description, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrNotFound
		}
		return Group{}, err
	}
	return group, nil
}
