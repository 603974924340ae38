// Package broadcast fans one message out to every member of a group and
// rebuilds past broadcast events from stored per-recipient rows.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wabridgehq/wabridge/internal/groups"
	"github.com/wabridgehq/wabridge/internal/message"
	"github.com/wabridgehq/wabridge/internal/outbound"
	"github.com/wabridgehq/wabridge/internal/settings"
)

var (
	// ErrNoMembers means the group has nobody to send to.
	ErrNoMembers = errors.New("group has no members")
	// ErrNoCredential means the owner cannot send.
	ErrNoCredential = errors.New("sender has no whatsapp credential configured")
)

const defaultWorkers = 4

// GroupSource supplies group ownership and membership.
type GroupSource interface {
	Get(ctx context.Context, groupID string) (groups.Group, error)
	Members(ctx context.Context, groupID string) ([]string, error)
}

// CredentialSource loads the owner's send credential.
type CredentialSource interface {
	Get(ctx context.Context, accountID string) (settings.Settings, error)
}

// MessageSender performs one single-recipient send. Implemented by the
// outbound dispatcher.
type MessageSender interface {
	Dispatch(ctx context.Context, input outbound.DispatchInput) (message.Message, error)
}

// RecipientError records one failed fan-out leg.
type RecipientError struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// Result summarizes one broadcast event.
type Result struct {
	BroadcastID  string           `json:"broadcast_id"`
	GroupID      string           `json:"group_id"`
	SentAt       time.Time        `json:"sent_at"`
	SuccessCount int              `json:"success_count"`
	FailedCount  int              `json:"failed_count"`
	Errors       []RecipientError `json:"errors,omitempty"`
}

// Service runs group fan-out.
type Service struct {
	groups     GroupSource
	settings   CredentialSource
	dispatcher MessageSender
	logger     *slog.Logger
	workers    int
}

func NewService(log *slog.Logger, groupSource GroupSource, credentials CredentialSource, dispatcher MessageSender) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		groups:     groupSource,
		settings:   credentials,
		dispatcher: dispatcher,
		logger:     log.With(slog.String("service", "broadcast")),
		workers:    defaultWorkers,
	}
}

// Send fans the payload out to every group member. All preconditions,
// payload validity included, are checked before the first dispatch so a
// rejected broadcast sends nothing.
// After that, one member's failure never stops the others; every row of the
// event shares the same timestamp and broadcast id.
func (s *Service) Send(ctx context.Context, ownerID, groupID string, payload outbound.Payload) (Result, error) {
	if err := payload.Validate(); err != nil {
		return Result{}, err
	}
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return Result{}, err
	}
	if group.OwnerID != ownerID {
		return Result{}, groups.ErrNotOwner
	}
	members, err := s.groups.Members(ctx, groupID)
	if err != nil {
		return Result{}, fmt.Errorf("load members: %w", err)
	}
	if len(members) == 0 {
		return Result{}, ErrNoMembers
	}
	cfg, err := s.settings.Get(ctx, ownerID)
	if err != nil {
		return Result{}, fmt.Errorf("load credential: %w", err)
	}
	if !cfg.Configured() {
		return Result{}, ErrNoCredential
	}

	// Captured once so every persisted row carries the identical timestamp.
	sentAt := time.Now().UTC().Truncate(time.Second)
	result := Result{
		BroadcastID: uuid.NewString(),
		GroupID:     groupID,
		SentAt:      sentAt,
	}

	workers := s.workers
	if workers > len(members) {
		workers = len(members)
	}
	jobs := make(chan string)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for recipient := range jobs {
				err := ctx.Err()
				if err == nil {
					_, err = s.dispatcher.Dispatch(ctx, outbound.DispatchInput{
						Recipient:    recipient,
						LocalPartyID: ownerID,
						Payload:      payload,
						Credentials:  cfg.Credentials(),
						Timestamp:    sentAt,
						Broadcast: &outbound.BroadcastTag{
							GroupID:     groupID,
							BroadcastID: result.BroadcastID,
						},
					})
				}
				mu.Lock()
				if err != nil {
					result.FailedCount++
					result.Errors = append(result.Errors, RecipientError{Recipient: recipient, Error: err.Error()})
				} else {
					result.SuccessCount++
				}
				mu.Unlock()
			}
		}()
	}
	for _, member := range members {
		jobs <- member
	}
	close(jobs)
	wg.Wait()

	s.logger.Info("broadcast finished",
		slog.String("broadcast_id", result.BroadcastID),
		slog.String("group_id", groupID),
		slog.Int("success", result.SuccessCount),
		slog.Int("failed", result.FailedCount),
	)
	return result, nil
}
