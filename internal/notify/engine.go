// Package notify turns notices into stored messages and serves the
// message API. The append path deduplicates per kind: a new-high notice
// is dropped while an unread new-high message exists, everything else is
// appended as produced (the producers already emit once-only notices).
package notify

import (
	"context"
	"database/sql"

	"dime/internal/core"
	"dime/internal/session"
	"dime/internal/storage"
)

type Engine struct {
	db       *sql.DB
	q        *storage.Queries
	sessions *session.Store
}

func NewEngine(db *sql.DB, sessions *session.Store) *Engine {
	return &Engine{
		db:       db,
		q:        storage.New(db),
		sessions: sessions,
	}
}

// Publish appends a notice as a message unless the dedup policy drops it.
// Called inside the ledger's transaction with its bound queries.
func (e *Engine) Publish(ctx context.Context, q *storage.Queries, sessionID int64, n core.Notice) error {
	if n.Kind == core.MessageBalanceHigh {
		unread, err := q.HasUnreadMessage(ctx, sessionID, core.MessageBalanceHigh)
		if err != nil {
			return err
		}
		if unread {
			return nil
		}
	}
	_, err := q.AppendMessage(ctx, sessionID, n.Kind, n.Text)
	return err
}

func (e *Engine) List(ctx context.Context, sessionID int64) ([]core.Message, error) {
	if err := e.sessions.Require(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.q.ListMessages(ctx, sessionID)
}

// MarkRead marks a message read and returns it. Marking twice is allowed.
func (e *Engine) MarkRead(ctx context.Context, sessionID, id int64) (core.Message, error) {
	if err := e.sessions.Require(ctx, sessionID); err != nil {
		return core.Message{}, err
	}

	unlock := e.sessions.Lock(sessionID)
	defer unlock()

	if err := e.q.MarkMessageRead(ctx, sessionID, id); err != nil {
		return core.Message{}, err
	}
	return e.q.GetMessage(ctx, sessionID, id)
}
