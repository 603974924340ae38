package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wabridgehq/wabridge/internal/accounts"
)

// ReceiverResolver decides which local account an inbound message belongs
// to. The webhook payload identifies the sender but not which of our
// accounts it was addressed to.
type ReceiverResolver interface {
	Resolve(ctx context.Context, senderID string) (string, error)
}

// BusinessOwnerSource yields the configured business-owner account id, if
// any. Implemented by the settings service.
type BusinessOwnerSource interface {
	BusinessOwner(ctx context.Context) (string, error)
}

// AccountFallback supplies last-resort receivers. Implemented by the
// accounts service.
type AccountFallback interface {
	FirstOther(ctx context.Context, excludeID string) (string, error)
	EnsureSystemAccount(ctx context.Context) (string, error)
}

// PrecedenceResolver walks a fixed chain: stored business owner, static
// configured owner, oldest credentialed account other than the sender, and
// finally the synthesized system account.
type PrecedenceResolver struct {
	settings     BusinessOwnerSource
	accounts     AccountFallback
	defaultOwner string
	logger       *slog.Logger
}

func NewPrecedenceResolver(log *slog.Logger, settings BusinessOwnerSource, accounts AccountFallback, defaultOwner string) *PrecedenceResolver {
	if log == nil {
		log = slog.Default()
	}
	return &PrecedenceResolver{
		settings:     settings,
		accounts:     accounts,
		defaultOwner: strings.TrimSpace(defaultOwner),
		logger:       log.With(slog.String("service", "inbound")),
	}
}

func (r *PrecedenceResolver) Resolve(ctx context.Context, senderID string) (string, error) {
	owner, err := r.settings.BusinessOwner(ctx)
	if err != nil {
		r.logger.Warn("business owner lookup failed", slog.Any("error", err))
	} else if owner != "" && owner != senderID {
		return owner, nil
	}

	if r.defaultOwner != "" && r.defaultOwner != senderID {
		return r.defaultOwner, nil
	}

	id, err := r.accounts.FirstOther(ctx, senderID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, accounts.ErrNotFound) {
		return "", fmt.Errorf("resolve receiver: %w", err)
	}

	return r.accounts.EnsureSystemAccount(ctx)
}
