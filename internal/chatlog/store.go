// Package chatlog keeps a transcript of the dialogue in PostgreSQL:
// one conversation row per chat user, one message row per line. The
// engine writes through it best-effort; the dev console reads history
// from it. Everything is nil-safe so deployments without a transcript
// database run unchanged.
package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	directionInbound  = "in"
	directionOutbound = "out"

	defaultHistoryLimit = 100
)

// Message is one transcript line.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Direction string    `json:"direction"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Inbound reports whether the line came from the user.
func (m Message) Inbound() bool { return m.Direction == directionInbound }

// Store persists transcripts through database/sql.
type Store struct {
	db *sql.DB
}

// NewStore wraps the transcript database. A nil db yields a nil store
// whose methods all no-op, so callers wire it unconditionally.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// AppendInbound records a line the user sent.
func (s *Store) AppendInbound(ctx context.Context, userID, text string) error {
	return s.append(ctx, userID, directionInbound, text)
}

// AppendOutbound records a line sent to the user.
func (s *Store) AppendOutbound(ctx context.Context, userID, text string) error {
	return s.append(ctx, userID, directionOutbound, text)
}

func (s *Store) append(ctx context.Context, userID, direction, body string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if userID == "" || body == "" {
		return nil
	}
	if err := s.ensureConversation(ctx, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, direction, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), userID, direction, body, now); err != nil {
		return fmt.Errorf("chatlog: insert message: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE chat_conversations SET
			message_count = message_count + 1,
			last_message_at = $1
		WHERE user_id = $2
	`, now, userID); err != nil {
		return fmt.Errorf("chatlog: update counters: %w", err)
	}
	return nil
}

// ensureConversation creates the user's conversation row on first
// contact. Concurrent first writes race harmlessly into the conflict
// clause.
func (s *Store) ensureConversation(ctx context.Context, userID string) error {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM chat_conversations WHERE user_id = $1`, userID,
	).Scan(&id)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("chatlog: check conversation: %w", err)
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_conversations (id, user_id, message_count, started_at, last_message_at)
		VALUES ($1, $2, 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID, now); err != nil {
		return fmt.Errorf("chatlog: create conversation: %w", err)
	}
	return nil
}

// History returns the user's most recent lines, oldest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, direction, body, created_at FROM (
			SELECT id, user_id, direction, body, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("chatlog: query history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Direction, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatlog: scan history row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatlog: iterate history: %w", err)
	}
	return out, nil
}
