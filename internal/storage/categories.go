package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dime/internal/core"
)

func (q *Queries) CreateCategory(ctx context.Context, sessionID int64, name string) (core.Category, error) {
	id, err := q.nextID(ctx, "categories", sessionID)
	if err != nil {
		return core.Category{}, err
	}
	_, err = q.db.ExecContext(ctx,
		"INSERT INTO categories (session_id, id, name) VALUES (?, ?, ?)",
		sessionID, id, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return core.Category{ID: id, Name: name}, nil
}

func (q *Queries) GetCategory(ctx context.Context, sessionID, id int64) (core.Category, error) {
	var c core.Category
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name FROM categories WHERE session_id = ? AND id = ?",
		sessionID, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (q *Queries) ListCategories(ctx context.Context, sessionID int64) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name FROM categories WHERE session_id = ? ORDER BY id",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (q *Queries) UpdateCategory(ctx context.Context, sessionID, id int64, name string) (core.Category, error) {
	res, err := q.db.ExecContext(ctx,
		"UPDATE categories SET name = ? WHERE session_id = ? AND id = ?",
		name, sessionID, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n == 0 {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return core.Category{ID: id, Name: name}, nil
}

func (q *Queries) DeleteCategory(ctx context.Context, sessionID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM categories WHERE session_id = ? AND id = ?",
		sessionID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return nil
}
