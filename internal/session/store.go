// Package session issues opaque session ids and guards their state.
// Every other component resolves identity through the store and takes the
// session's write lock before mutating anything.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"dime/internal/core"
	"dime/internal/storage"
)

type Store struct {
	q *storage.Queries

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		q:     storage.New(db),
		locks: make(map[int64]*sync.Mutex),
	}
}

// Create issues a fresh session. Ids only grow, so they never collide
// with ids handed out earlier.
func (s *Store) Create(ctx context.Context) (core.Session, error) {
	sess, err := s.q.CreateSession(ctx)
	if err != nil {
		return core.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Require fails with ErrUnauthorized unless the session exists.
func (s *Store) Require(ctx context.Context, sessionID int64) error {
	if sessionID <= 0 {
		return core.ErrUnauthorized
	}
	ok, err := s.q.SessionExists(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("require session: %w", err)
	}
	if !ok {
		return core.ErrUnauthorized
	}
	return nil
}

// Lock takes the session's exclusive write lock and returns the unlock.
// Mutation chains hold it end to end so concurrent writes to one session
// serialize; sessions never block each other.
func (s *Store) Lock(sessionID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
