// Package rules owns category rules and the classification they drive.
//
// Rules are evaluated in creation order and the last matching rule wins. A
// rule matches a transaction when its description is a substring of the
// transaction's description (the empty description matches everything),
// the IBAN is equal and the type is equal.
package rules

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

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

// Create stores a rule and, when applyOnHistory is set, immediately
// re-classifies every existing transaction with the rule set as it exists
// at this moment. Rules added later never rewrite history.
func (e *Engine) Create(ctx context.Context, sessionID int64, in core.CategoryRuleInput) (core.CategoryRule, error) {
	if err := e.sessions.Require(ctx, sessionID); err != nil {
		return core.CategoryRule{}, err
	}
	if err := in.Validate(); err != nil {
		return core.CategoryRule{}, err
	}

	unlock := e.sessions.Lock(sessionID)
	defer unlock()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return core.CategoryRule{}, fmt.Errorf("begin create rule: %w", err)
	}
	defer tx.Rollback()

	q := e.q.WithTx(tx)
	if _, err := q.GetCategory(ctx, sessionID, *in.CategoryID); err != nil {
		return core.CategoryRule{}, fmt.Errorf("%w: categoryId does not resolve", core.ErrInvalidInput)
	}

	rule := core.CategoryRule{
		Description: *in.Description,
		IBAN:        *in.IBAN,
		Type:        *in.Type,
		CategoryID:  *in.CategoryID,
	}
	if in.ApplyOnHistory != nil {
		rule.ApplyOnHistory = *in.ApplyOnHistory
	}
	rule, err = q.CreateRule(ctx, sessionID, rule)
	if err != nil {
		return core.CategoryRule{}, err
	}

	if rule.ApplyOnHistory {
		txs, err := q.ListTransactionsByDate(ctx, sessionID)
		if err != nil {
			return core.CategoryRule{}, err
		}
		for _, t := range txs {
			if err := e.classify(ctx, q, sessionID, t); err != nil {
				return core.CategoryRule{}, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return core.CategoryRule{}, fmt.Errorf("commit create rule: %w", err)
	}
	return rule, nil
}

func (e *Engine) Get(ctx context.Context, sessionID, id int64) (core.CategoryRule, error) {
	if err := e.sessions.Require(ctx, sessionID); err != nil {
		return core.CategoryRule{}, err
	}
	return e.q.GetRule(ctx, sessionID, id)
}

func (e *Engine) List(ctx context.Context, sessionID int64) ([]core.CategoryRule, error) {
	if err := e.sessions.Require(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.q.ListRules(ctx, sessionID)
}

// Update replaces a rule in place. The rule keeps its evaluation slot, it
// does not move to the end of the order, and history is left untouched.
func (e *Engine) Update(ctx context.Context, sessionID, id int64, in core.CategoryRuleInput) (core.CategoryRule, error) {
	if err := e.sessions.Require(ctx, sessionID); err != nil {
		return core.CategoryRule{}, err
	}
	if err := in.Validate(); err != nil {
		return core.CategoryRule{}, err
	}

	unlock := e.sessions.Lock(sessionID)
	defer unlock()

	if _, err := e.q.GetCategory(ctx, sessionID, *in.CategoryID); err != nil {
		return core.CategoryRule{}, fmt.Errorf("%w: categoryId does not resolve", core.ErrInvalidInput)
	}

	rule := core.CategoryRule{
		ID:          id,
		Description: *in.Description,
		IBAN:        *in.IBAN,
		Type:        *in.Type,
		CategoryID:  *in.CategoryID,
	}
	if in.ApplyOnHistory != nil {
		rule.ApplyOnHistory = *in.ApplyOnHistory
	}
	return e.q.UpdateRule(ctx, sessionID, rule)
}

// Delete removes a rule. Classifications it produced stay as they are.
func (e *Engine) Delete(ctx context.Context, sessionID, id int64) error {
	if err := e.sessions.Require(ctx, sessionID); err != nil {
		return err
	}

	unlock := e.sessions.Lock(sessionID)
	defer unlock()

	return e.q.DeleteRule(ctx, sessionID, id)
}

// OnLedgerMutation re-classifies the mutated transaction. Runs inside the
// ledger's transaction, so q is already bound to it.
func (e *Engine) OnLedgerMutation(ctx context.Context, q *storage.Queries, ev core.LedgerEvent) ([]core.Notice, error) {
	if ev.Action == core.ActionDelete {
		return nil, nil
	}
	if err := e.classify(ctx, q, ev.SessionID, ev.Transaction); err != nil {
		return nil, err
	}
	return nil, nil
}

func (e *Engine) classify(ctx context.Context, q *storage.Queries, sessionID int64, t core.Transaction) error {
	rules, err := q.ListRules(ctx, sessionID)
	if err != nil {
		return err
	}
	var winner *core.CategoryRule
	for i := range rules {
		if matches(rules[i], t) {
			winner = &rules[i]
		}
	}
	if winner == nil {
		return nil
	}
	// The winning rule may point at a deleted category; then it assigns
	// nothing.
	if _, err := q.GetCategory(ctx, sessionID, winner.CategoryID); err != nil {
		return nil
	}
	return q.SetTransactionCategory(ctx, sessionID, t.ID, &winner.CategoryID)
}

func matches(r core.CategoryRule, t core.Transaction) bool {
	return strings.Contains(t.Description, r.Description) &&
		t.ExternalIBAN == r.IBAN &&
		t.Type == r.Type
}
