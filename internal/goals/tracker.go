// Package goals manages saving goals and their lazy monthly accrual.
//
// Nothing runs on a timer. Month boundaries are observed when a ledger
// mutation carries a transaction date past the session's previous event
// date; each boundary credits every goal once, gated on the session's
// closing balance at that evaluation. A month the balance gate rejects is
// lost, it is not made up later.
package goals

import (
	"context"
	"database/sql"
	"fmt"

	"dime/internal/core"
	"dime/internal/session"
	"dime/internal/storage"
)

type Tracker struct {
	db       *sql.DB
	q        *storage.Queries
	sessions *session.Store
}

func NewTracker(db *sql.DB, sessions *session.Store) *Tracker {
	return &Tracker{
		db:       db,
		q:        storage.New(db),
		sessions: sessions,
	}
}

func (t *Tracker) Create(ctx context.Context, sessionID int64, in core.SavingGoalInput) (core.SavingGoal, error) {
	if err := t.sessions.Require(ctx, sessionID); err != nil {
		return core.SavingGoal{}, err
	}
	if err := in.Validate(); err != nil {
		return core.SavingGoal{}, err
	}

	unlock := t.sessions.Lock(sessionID)
	defer unlock()

	goal := core.SavingGoal{
		Name:         *in.Name,
		Goal:         *in.Goal,
		SavePerMonth: *in.SavePerMonth,
	}
	if in.MinBalanceRequired != nil {
		goal.MinBalanceRequired = *in.MinBalanceRequired
	}
	return t.q.CreateGoal(ctx, sessionID, goal)
}

func (t *Tracker) List(ctx context.Context, sessionID int64) ([]core.SavingGoal, error) {
	if err := t.sessions.Require(ctx, sessionID); err != nil {
		return nil, err
	}
	return t.q.ListGoals(ctx, sessionID)
}

func (t *Tracker) Delete(ctx context.Context, sessionID, id int64) error {
	if err := t.sessions.Require(ctx, sessionID); err != nil {
		return err
	}

	unlock := t.sessions.Lock(sessionID)
	defer unlock()

	return t.q.DeleteGoal(ctx, sessionID, id)
}

// OnLedgerMutation advances the session's event high-water mark and
// accrues goals for every month boundary crossed. Runs inside the
// ledger's transaction.
func (t *Tracker) OnLedgerMutation(ctx context.Context, q *storage.Queries, ev core.LedgerEvent) ([]core.Notice, error) {
	if ev.Action == core.ActionDelete {
		return nil, nil
	}

	markNS, err := q.SessionMark(ctx, ev.SessionID)
	if err != nil {
		return nil, err
	}
	eventNS := ev.Transaction.Date.UnixNano()
	if markNS == 0 {
		// First ledger event just sets the mark.
		return nil, q.SetSessionMark(ctx, ev.SessionID, eventNS)
	}
	if eventNS <= markNS {
		// Backdated mutations never rewind or advance the clock.
		return nil, nil
	}

	prev := core.RestoreDateTime("", markNS)
	months := ev.Transaction.Date.MonthIndex() - prev.MonthIndex()
	if err := q.SetSessionMark(ctx, ev.SessionID, eventNS); err != nil {
		return nil, err
	}
	if months <= 0 {
		return nil, nil
	}

	var closing core.Money
	if n := len(ev.Sequence); n > 0 {
		closing = ev.Sequence[n-1].Balance
	}

	return t.accrue(ctx, q, ev.SessionID, months, closing)
}

func (t *Tracker) accrue(ctx context.Context, q *storage.Queries, sessionID int64, months int, closing core.Money) ([]core.Notice, error) {
	goals, err := q.ListGoals(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var notices []core.Notice
	for _, g := range goals {
		changed := false
		for i := 0; i < months; i++ {
			if closing < g.MinBalanceRequired {
				continue
			}
			credit := g.SavePerMonth
			if remaining := g.Goal - g.Balance; credit > remaining {
				credit = remaining
			}
			if credit <= 0 {
				continue
			}
			g.Balance += credit
			changed = true
		}
		if g.Balance >= g.Goal && !g.ReachedNotified {
			g.ReachedNotified = true
			changed = true
			notices = append(notices, core.Notice{
				Kind: core.MessageGoalReached,
				Text: fmt.Sprintf("Saving goal %s reached", g.Name),
			})
		}
		if changed {
			if err := q.SetGoalProgress(ctx, sessionID, g.ID, g.Balance, g.ReachedNotified); err != nil {
				return nil, err
			}
		}
	}
	return notices, nil
}
