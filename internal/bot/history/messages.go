package history

import (
	"context"
	"fmt"
	"time"
)

// KeepPerUser is how many recent messages are retained per user.  Older
// entries are trimmed on insert; the relay context sent to agents and the
// admin view both read from this window.
const KeepPerUser = 10

// Role identifies who authored a recorded message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleBot   Role = "bot"
)

// Message is one recorded inbound or relayed message.
type Message struct {
	ID        int64
	Timestamp time.Time
	UserKey   string
	Role      Role
	Body      string
}

// Append records a message for userKey and trims the history window.
func (s *Store) Append(ctx context.Context, userKey string, role Role, body string) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (ts, user_key, sender_role, body) VALUES (?, ?, ?, ?)
	`, now, userKey, string(role), body); err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}

	// Keep only the newest KeepPerUser rows for this user.
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE user_key = ? AND id NOT IN (
			SELECT id FROM messages WHERE user_key = ? ORDER BY id DESC LIMIT ?
		)
	`, userKey, userKey, KeepPerUser); err != nil {
		return fmt.Errorf("failed to trim message history: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent messages for userKey, oldest first.
// limit <= 0 returns the full retained window.
func (s *Store) Recent(ctx context.Context, userKey string, limit int) ([]Message, error) {
	if limit <= 0 || limit > KeepPerUser {
		limit = KeepPerUser
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, user_key, sender_role, body
		FROM (
			SELECT id, ts, user_key, sender_role, body
			FROM messages WHERE user_key = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, userKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query message history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.UserKey, &role, &m.Body); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}
