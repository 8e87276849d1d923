package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dime/internal/core"
)

func (q *Queries) CreateRule(ctx context.Context, sessionID int64, r core.CategoryRule) (core.CategoryRule, error) {
	id, err := q.nextID(ctx, "category_rules", sessionID)
	if err != nil {
		return core.CategoryRule{}, err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO category_rules (session_id, id, description, iban, type, category_id, apply_on_history)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, id, r.Description, r.IBAN, string(r.Type), r.CategoryID, r.ApplyOnHistory)
	if err != nil {
		return core.CategoryRule{}, fmt.Errorf("create category rule: %w", err)
	}
	r.ID = id
	return r, nil
}

func (q *Queries) GetRule(ctx context.Context, sessionID, id int64) (core.CategoryRule, error) {
	var r core.CategoryRule
	err := q.db.QueryRowContext(ctx,
		`SELECT id, description, iban, type, category_id, apply_on_history
		 FROM category_rules WHERE session_id = ? AND id = ?`,
		sessionID, id).Scan(&r.ID, &r.Description, &r.IBAN, &r.Type, &r.CategoryID, &r.ApplyOnHistory)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CategoryRule{}, fmt.Errorf("category rule %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.CategoryRule{}, fmt.Errorf("get category rule: %w", err)
	}
	return r, nil
}

// ListRules returns the session's rules in creation order.
func (q *Queries) ListRules(ctx context.Context, sessionID int64) ([]core.CategoryRule, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, description, iban, type, category_id, apply_on_history
		 FROM category_rules WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list category rules: %w", err)
	}
	defer rows.Close()

	rules := []core.CategoryRule{}
	for rows.Next() {
		var r core.CategoryRule
		if err := rows.Scan(&r.ID, &r.Description, &r.IBAN, &r.Type, &r.CategoryID, &r.ApplyOnHistory); err != nil {
			return nil, fmt.Errorf("scan category rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (q *Queries) UpdateRule(ctx context.Context, sessionID int64, r core.CategoryRule) (core.CategoryRule, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE category_rules SET description = ?, iban = ?, type = ?, category_id = ?, apply_on_history = ?
		 WHERE session_id = ? AND id = ?`,
		r.Description, r.IBAN, string(r.Type), r.CategoryID, r.ApplyOnHistory, sessionID, r.ID)
	if err != nil {
		return core.CategoryRule{}, fmt.Errorf("update category rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.CategoryRule{}, fmt.Errorf("update category rule: %w", err)
	}
	if n == 0 {
		return core.CategoryRule{}, fmt.Errorf("category rule %d: %w", r.ID, core.ErrNotFound)
	}
	return r, nil
}

func (q *Queries) DeleteRule(ctx context.Context, sessionID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM category_rules WHERE session_id = ? AND id = ?",
		sessionID, id)
	if err != nil {
		return fmt.Errorf("delete category rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rule: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category rule %d: %w", id, core.ErrNotFound)
	}
	return nil
}
