// Package category manages the per-session category taxonomy.
package category

import (
	"context"
	"database/sql"
	"fmt"

	"dime/internal/core"
	"dime/internal/session"
	"dime/internal/storage"
)

type Service struct {
	db       *sql.DB
	q        *storage.Queries
	sessions *session.Store
}

func NewService(db *sql.DB, sessions *session.Store) *Service {
	return &Service{
		db:       db,
		q:        storage.New(db),
		sessions: sessions,
	}
}

func (s *Service) Create(ctx context.Context, sessionID int64, in core.CategoryInput) (core.Category, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return core.Category{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	c, err := s.q.CreateCategory(ctx, sessionID, *in.Name)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, sessionID, id int64) (core.Category, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return core.Category{}, err
	}
	return s.q.GetCategory(ctx, sessionID, id)
}

func (s *Service) List(ctx context.Context, sessionID int64) ([]core.Category, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.q.ListCategories(ctx, sessionID)
}

func (s *Service) Update(ctx context.Context, sessionID, id int64, in core.CategoryInput) (core.Category, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return core.Category{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	return s.q.UpdateCategory(ctx, sessionID, id, *in.Name)
}

// Delete removes a category. Transactions that pointed at it fall back to
// unclassified; rules keep their dangling reference and simply stop
// resolving.
func (s *Service) Delete(ctx context.Context, sessionID, id int64) error {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return err
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	q := s.q.WithTx(tx)
	if err := q.DeleteCategory(ctx, sessionID, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE transactions SET category_id = NULL WHERE session_id = ? AND category_id = ?",
		sessionID, id); err != nil {
		return fmt.Errorf("unclassify transactions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete category: %w", err)
	}
	return nil
}
