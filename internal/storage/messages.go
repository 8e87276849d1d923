package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dime/internal/core"
)

func (q *Queries) AppendMessage(ctx context.Context, sessionID int64, kind core.MessageKind, text string) (core.Message, error) {
	id, err := q.nextID(ctx, "messages", sessionID)
	if err != nil {
		return core.Message{}, err
	}
	now := time.Now().UTC()
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, id, kind, body, is_read, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		sessionID, id, string(kind), text, now.Format(time.RFC3339))
	if err != nil {
		return core.Message{}, fmt.Errorf("append message: %w", err)
	}
	return core.Message{ID: id, Text: text, Kind: kind, CreatedAt: now}, nil
}

func (q *Queries) ListMessages(ctx context.Context, sessionID int64) ([]core.Message, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, kind, body, is_read FROM messages WHERE session_id = ? ORDER BY id",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []core.Message{}
	for rows.Next() {
		var m core.Message
		if err := rows.Scan(&m.ID, &m.Kind, &m.Text, &m.Read); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (q *Queries) GetMessage(ctx context.Context, sessionID, id int64) (core.Message, error) {
	var m core.Message
	err := q.db.QueryRowContext(ctx,
		"SELECT id, kind, body, is_read FROM messages WHERE session_id = ? AND id = ?",
		sessionID, id).Scan(&m.ID, &m.Kind, &m.Text, &m.Read)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Message{}, fmt.Errorf("message %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (q *Queries) MarkMessageRead(ctx context.Context, sessionID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE messages SET is_read = 1 WHERE session_id = ? AND id = ?",
		sessionID, id)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// HasUnreadMessage reports whether an unread message of the given kind
// exists, which drives the new-high dedup.
func (q *Queries) HasUnreadMessage(ctx context.Context, sessionID int64, kind core.MessageKind) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx,
		"SELECT 1 FROM messages WHERE session_id = ? AND kind = ? AND is_read = 0 LIMIT 1",
		sessionID, string(kind)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check unread messages: %w", err)
	}
	return true, nil
}
