package storage

import (
	"context"
	"fmt"

	"dime/internal/core"
)

func (q *Queries) CreateGoal(ctx context.Context, sessionID int64, g core.SavingGoal) (core.SavingGoal, error) {
	id, err := q.nextID(ctx, "saving_goals", sessionID)
	if err != nil {
		return core.SavingGoal{}, err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO saving_goals (session_id, id, name, goal_cents, save_per_month_cents, min_balance_cents, balance_cents, reached_notified)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0)`,
		sessionID, id, g.Name, int64(g.Goal), int64(g.SavePerMonth), int64(g.MinBalanceRequired))
	if err != nil {
		return core.SavingGoal{}, fmt.Errorf("create saving goal: %w", err)
	}
	g.ID = id
	g.Balance = 0
	return g, nil
}

func (q *Queries) ListGoals(ctx context.Context, sessionID int64) ([]core.SavingGoal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, goal_cents, save_per_month_cents, min_balance_cents, balance_cents, reached_notified
		 FROM saving_goals WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list saving goals: %w", err)
	}
	defer rows.Close()

	goals := []core.SavingGoal{}
	for rows.Next() {
		var g core.SavingGoal
		if err := rows.Scan(&g.ID, &g.Name, &g.Goal, &g.SavePerMonth, &g.MinBalanceRequired, &g.Balance, &g.ReachedNotified); err != nil {
			return nil, fmt.Errorf("scan saving goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (q *Queries) DeleteGoal(ctx context.Context, sessionID, id int64) error {
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM saving_goals WHERE session_id = ? AND id = ?",
		sessionID, id)
	if err != nil {
		return fmt.Errorf("delete saving goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete saving goal: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("saving goal %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// SetGoalProgress persists the accrued balance and reached flag.
func (q *Queries) SetGoalProgress(ctx context.Context, sessionID, id int64, balance core.Money, reachedNotified bool) error {
	if _, err := q.db.ExecContext(ctx,
		"UPDATE saving_goals SET balance_cents = ?, reached_notified = ? WHERE session_id = ? AND id = ?",
		int64(balance), reachedNotified, sessionID, id); err != nil {
		return fmt.Errorf("set saving goal progress: %w", err)
	}
	return nil
}
