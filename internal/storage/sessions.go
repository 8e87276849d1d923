package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dime/internal/core"
)

func (q *Queries) CreateSession(ctx context.Context) (core.Session, error) {
	res, err := q.db.ExecContext(ctx, "INSERT INTO sessions (last_event_ns) VALUES (0)")
	if err != nil {
		return core.Session{}, fmt.Errorf("create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Session{}, fmt.Errorf("session id: %w", err)
	}
	return core.Session{ID: id, CreatedAt: time.Now()}, nil
}

func (q *Queries) SessionExists(ctx context.Context, sessionID int64) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return true, nil
}

// SessionMark returns the session's last ledger-event timestamp in
// nanoseconds, zero when no event was recorded yet.
func (q *Queries) SessionMark(ctx context.Context, sessionID int64) (int64, error) {
	var ns int64
	err := q.db.QueryRowContext(ctx, "SELECT last_event_ns FROM sessions WHERE id = ?", sessionID).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("session %d: %w", sessionID, core.ErrUnauthorized)
	}
	if err != nil {
		return 0, fmt.Errorf("get session mark: %w", err)
	}
	return ns, nil
}

func (q *Queries) SetSessionMark(ctx context.Context, sessionID, ns int64) error {
	if _, err := q.db.ExecContext(ctx, "UPDATE sessions SET last_event_ns = ? WHERE id = ?", ns, sessionID); err != nil {
		return fmt.Errorf("set session mark: %w", err)
	}
	return nil
}
