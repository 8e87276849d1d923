// Package ledger is the mutation core. Every transaction insert, update
// and delete runs in one database transaction under the session's write
// lock: the row change, the date-ordered balance recompute, the observer
// pipeline (classification, goal accrual, payment matching) and the
// resulting messages all land atomically, or not at all.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dime/internal/core"
	applog "dime/internal/log"
	"dime/internal/notify"
	"dime/internal/session"
	"dime/internal/storage"
)

// Observer reacts to a ledger mutation inside its transaction. Returned
// notices are published in observer order, after the balance notices.
type Observer interface {
	OnLedgerMutation(ctx context.Context, q *storage.Queries, ev core.LedgerEvent) ([]core.Notice, error)
}

// Publisher forwards committed mutations to the event feed. Failures must
// not fail the request.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

type Service struct {
	db        *sql.DB
	q         *storage.Queries
	sessions  *session.Store
	observers []Observer
	notifier  *notify.Engine
	publisher Publisher
	audit     *applog.StructuredLogger
	now       func() time.Time
}

// NewService wires the mutation core. Observers run in the given order on
// every mutation; publisher may be nil.
func NewService(db *sql.DB, sessions *session.Store, notifier *notify.Engine, observers []Observer, publisher Publisher) *Service {
	return &Service{
		db:        db,
		q:         storage.New(db),
		sessions:  sessions,
		observers: observers,
		notifier:  notifier,
		publisher: publisher,
		audit: applog.NewStructuredLogger(applog.New(applog.Config{
			Component: applog.ComponentLedger,
		})),
		now: time.Now,
	}
}

// ListParams selects a page of the transaction list.
type ListParams struct {
	Offset   int64
	Limit    int64
	Category *int64
}

// normalize clamps out-of-range paging values instead of rejecting them.
func (p ListParams) normalize() ListParams {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit < 1 {
		p.Limit = 1
	}
	if p.Limit > 20 {
		p.Limit = 20
	}
	return p
}

func (s *Service) Insert(ctx context.Context, sessionID int64, in core.TransactionInput) (core.Transaction, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return core.Transaction{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	q := s.q.WithTx(tx)
	created, err := q.InsertTransaction(ctx, sessionID, core.Transaction{
		Date:         *in.Date,
		Amount:       *in.Amount,
		ExternalIBAN: *in.ExternalIBAN,
		Type:         *in.Type,
		Description:  *in.Description,
	})
	if err != nil {
		return core.Transaction{}, err
	}

	ev, err := s.settle(ctx, q, sessionID, core.ActionInsert, created.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	result, err := q.GetTransaction(ctx, sessionID, created.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit insert: %w", err)
	}

	s.publish(ctx, ev)
	return result, nil
}

func (s *Service) Get(ctx context.Context, sessionID, id int64) (core.Transaction, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return core.Transaction{}, err
	}
	return s.q.GetTransaction(ctx, sessionID, id)
}

func (s *Service) List(ctx context.Context, sessionID int64, p ListParams) ([]core.Transaction, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return nil, err
	}
	p = p.normalize()
	return s.q.ListTransactions(ctx, sessionID, p.Offset, p.Limit, p.Category)
}

func (s *Service) Update(ctx context.Context, sessionID, id int64, in core.TransactionInput) (core.Transaction, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return core.Transaction{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	q := s.q.WithTx(tx)
	if _, err := q.GetTransaction(ctx, sessionID, id); err != nil {
		return core.Transaction{}, err
	}
	if err := q.UpdateTransaction(ctx, sessionID, core.Transaction{
		ID:           id,
		Date:         *in.Date,
		Amount:       *in.Amount,
		ExternalIBAN: *in.ExternalIBAN,
		Type:         *in.Type,
		Description:  *in.Description,
	}); err != nil {
		return core.Transaction{}, err
	}

	ev, err := s.settle(ctx, q, sessionID, core.ActionUpdate, id)
	if err != nil {
		return core.Transaction{}, err
	}
	result, err := q.GetTransaction(ctx, sessionID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit update: %w", err)
	}

	s.publish(ctx, ev)
	return result, nil
}

func (s *Service) Delete(ctx context.Context, sessionID, id int64) error {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return err
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	q := s.q.WithTx(tx)
	removed, err := q.GetTransaction(ctx, sessionID, id)
	if err != nil {
		return err
	}
	if err := q.DeleteTransaction(ctx, sessionID, id); err != nil {
		return err
	}

	seq, err := s.recompute(ctx, q, sessionID)
	if err != nil {
		return err
	}
	ev := core.LedgerEvent{
		SessionID:   sessionID,
		Action:      core.ActionDelete,
		Transaction: removed,
		Sequence:    seq,
	}
	if err := s.runPipeline(ctx, q, ev); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	s.publish(ctx, ev)
	return nil
}

// SetCategory assigns a category to a transaction. It does not touch
// balances, so the mutation pipeline does not run.
func (s *Service) SetCategory(ctx context.Context, sessionID, id, categoryID int64) (core.Transaction, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return core.Transaction{}, err
	}

	unlock := s.sessions.Lock(sessionID)
	defer unlock()

	if _, err := s.q.GetCategory(ctx, sessionID, categoryID); err != nil {
		return core.Transaction{}, err
	}
	if err := s.q.SetTransactionCategory(ctx, sessionID, id, &categoryID); err != nil {
		return core.Transaction{}, err
	}
	return s.q.GetTransaction(ctx, sessionID, id)
}

// settle recomputes balances, builds the event anchored on the mutated
// transaction and runs the observer pipeline.
func (s *Service) settle(ctx context.Context, q *storage.Queries, sessionID int64, action core.LedgerAction, id int64) (core.LedgerEvent, error) {
	seq, err := s.recompute(ctx, q, sessionID)
	if err != nil {
		return core.LedgerEvent{}, err
	}
	ev := core.LedgerEvent{SessionID: sessionID, Action: action, Sequence: seq}
	for _, t := range seq {
		if t.ID == id {
			ev.Transaction = t
			break
		}
	}
	if err := s.runPipeline(ctx, q, ev); err != nil {
		return core.LedgerEvent{}, err
	}
	return ev, nil
}

// recompute re-derives every running balance from scratch. Linear in the
// session ledger, which keeps backdated mutations trivially correct.
func (s *Service) recompute(ctx context.Context, q *storage.Queries, sessionID int64) ([]core.Transaction, error) {
	txs, err := q.ListTransactionsByDate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var running core.Money
	for i := range txs {
		running += txs[i].Signed()
		if txs[i].Balance != running {
			if err := q.SetTransactionBalance(ctx, sessionID, txs[i].ID, running); err != nil {
				return nil, err
			}
			txs[i].Balance = running
		}
	}
	return txs, nil
}

func (s *Service) runPipeline(ctx context.Context, q *storage.Queries, ev core.LedgerEvent) error {
	notices := balanceNotices(ev)
	for _, ob := range s.observers {
		ns, err := ob.OnLedgerMutation(ctx, q, ev)
		if err != nil {
			return err
		}
		notices = append(notices, ns...)
	}
	for _, n := range notices {
		if err := s.notifier.Publish(ctx, q, ev.SessionID, n); err != nil {
			return err
		}
	}
	return nil
}

// balanceNotices derives the balance-driven notices for the mutated
// transaction: crossing below zero, and exceeding every balance that
// precedes it in date order.
func balanceNotices(ev core.LedgerEvent) []core.Notice {
	if ev.Action == core.ActionDelete {
		return nil
	}
	idx := -1
	for i, t := range ev.Sequence {
		if t.ID == ev.Transaction.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	var prev, maxBefore core.Money
	for i := 0; i < idx; i++ {
		if ev.Sequence[i].Balance > maxBefore {
			maxBefore = ev.Sequence[i].Balance
		}
	}
	if idx > 0 {
		prev = ev.Sequence[idx-1].Balance
	}

	balance := ev.Sequence[idx].Balance
	var notices []core.Notice
	if balance < 0 && prev >= 0 {
		notices = append(notices, core.Notice{Kind: core.MessageBalanceNegative, Text: "Balance is negative"})
	}
	if balance > maxBefore {
		notices = append(notices, core.Notice{Kind: core.MessageBalanceHigh, Text: "Balance reached new high"})
	}
	return notices
}

func (s *Service) publish(ctx context.Context, ev core.LedgerEvent) {
	s.audit.LogLedgerMutation(ctx, ev.SessionID, string(ev.Action), ev.Transaction.ID, int64(ev.Transaction.Amount))
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishLedgerEvent(pubCtx, ev); err != nil {
		// The mutation is committed; the feed catches up later.
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"session_id", ev.SessionID,
			"action", string(ev.Action),
			"error", err)
	}
}
