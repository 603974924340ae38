package message

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBService persists and reads conversation messages.
type DBService struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a message service.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		pool:   pool,
		logger: log.With(slog.String("service", "message")),
	}
}

// Persist writes a single message row. Rows are never updated afterwards.
func (s *DBService) Persist(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ID) == "" {
		return fmt.Errorf("message id is required")
	}
	var metaBytes []byte
	if msg.Media != nil {
		var err error
		metaBytes, err = json.Marshal(msg.Media)
		if err != nil {
			return fmt.Errorf("marshal media metadata: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, counterpart_id, local_party_id, sent_by_local, content, message_type, media_metadata, sent_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.CounterpartID, msg.LocalPartyID, msg.SentByLocal,
		msg.Content, string(msg.Type), metaBytes, msg.SentAt, msg.Read,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListThread returns the conversation between an account and a counterpart,
// oldest first. Inbound and outbound rows share the same thread key.
func (s *DBService) ListThread(ctx context.Context, localPartyID, counterpartID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, counterpart_id, local_party_id, sent_by_local, content, message_type, media_metadata, sent_at, is_read
		FROM messages
		WHERE local_party_id = $1 AND counterpart_id = $2
		ORDER BY sent_at ASC, id ASC`,
		localPartyID, counterpartID,
	)
	if err != nil {
		return nil, fmt.Errorf("query thread: %w", err)
	}
	defer rows.Close()
	return s.scanMessages(rows)
}

// ListByAccount returns every message stored for an account, oldest first.
func (s *DBService) ListByAccount(ctx context.Context, localPartyID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, counterpart_id, local_party_id, sent_by_local, content, message_type, media_metadata, sent_at, is_read
		FROM messages
		WHERE local_party_id = $1
		ORDER BY sent_at ASC, id ASC`,
		localPartyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query account messages: %w", err)
	}
	defer rows.Close()
	return s.scanMessages(rows)
}

// MarkThreadRead marks all inbound rows of a thread as read.
func (s *DBService) MarkThreadRead(ctx context.Context, localPartyID, counterpartID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE local_party_id = $1 AND counterpart_id = $2 AND sent_by_local = FALSE AND is_read = FALSE`,
		localPartyID, counterpartID,
	)
	if err != nil {
		return fmt.Errorf("mark thread read: %w", err)
	}
	return nil
}

func (s *DBService) scanMessages(rows pgx.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var (
			msg       Message
			msgType   string
			metaBytes []byte
		)
		if err := rows.Scan(&msg.ID, &msg.CounterpartID, &msg.LocalPartyID, &msg.SentByLocal,
			&msg.Content, &msgType, &metaBytes, &msg.SentAt, &msg.Read); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Type = Type(msgType)
		msg.Media = parseMediaMetadata(s.logger, msg.ID, metaBytes)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// parseMediaMetadata is defensive: malformed metadata yields nil rather
// than failing the whole read.
func parseMediaMetadata(log *slog.Logger, messageID string, data []byte) *MediaMetadata {
	if len(data) == 0 {
		return nil
	}
	var meta MediaMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		if log != nil {
			log.Warn("malformed media metadata", slog.String("message_id", messageID), slog.Any("error", err))
		}
		return nil
	}
	return &meta
}
