// Package payments manages payment requests and matches incoming
// deposits against them.
package payments

import (
	"context"
	"database/sql"
	"time"

	"dime/internal/core"
	"dime/internal/session"
	"dime/internal/storage"
)

type Tracker struct {
	db       *sql.DB
	q        *storage.Queries
	sessions *session.Store
	now      func() time.Time
}

func NewTracker(db *sql.DB, sessions *session.Store) *Tracker {
	return &Tracker{
		db:       db,
		q:        storage.New(db),
		sessions: sessions,
		now:      time.Now,
	}
}

func (t *Tracker) Create(ctx context.Context, sessionID int64, in core.PaymentRequestInput) (core.PaymentRequest, error) {
	if err := t.sessions.Require(ctx, sessionID); err != nil {
		return core.PaymentRequest{}, err
	}
	if err := in.Validate(); err != nil {
		return core.PaymentRequest{}, err
	}

	unlock := t.sessions.Lock(sessionID)
	defer unlock()

	return t.q.CreatePaymentRequest(ctx, sessionID, core.PaymentRequest{
		Description:      *in.Description,
		DueDate:          *in.DueDate,
		Amount:           *in.Amount,
		NumberOfRequests: *in.NumberOfRequests,
	})
}

func (t *Tracker) List(ctx context.Context, sessionID int64) ([]core.PaymentRequest, error) {
	if err := t.sessions.Require(ctx, sessionID); err != nil {
		return nil, err
	}
	return t.q.ListPaymentRequests(ctx, sessionID)
}

// OnLedgerMutation matches a newly inserted deposit against the open
// requests, then sweeps for requests that ran past their due date
// unfilled. Runs inside the ledger's transaction.
func (t *Tracker) OnLedgerMutation(ctx context.Context, q *storage.Queries, ev core.LedgerEvent) ([]core.Notice, error) {
	var notices []core.Notice

	requests, err := q.ListPaymentRequests(ctx, ev.SessionID)
	if err != nil {
		return nil, err
	}

	if ev.Action == core.ActionInsert && ev.Transaction.Type == core.Deposit {
		for i := range requests {
			r := &requests[i]
			if r.Filled || r.Amount != ev.Transaction.Amount {
				continue
			}
			if ev.Transaction.Date.After(r.DueDate) {
				continue
			}
			if err := q.AppendRequestTransaction(ctx, ev.SessionID, r.ID, ev.Transaction.ID); err != nil {
				return nil, err
			}
			r.Transactions = append(r.Transactions, ev.Transaction)
			if int64(len(r.Transactions)) >= r.NumberOfRequests {
				r.Filled = true
				notices = append(notices, core.Notice{
					Kind: core.MessagePaymentFilled,
					Text: "One payment request has been filled",
				})
			}
			// A deposit settles at most one request.
			break
		}
	}

	now := t.now().UTC()
	for i := range requests {
		r := &requests[i]
		if r.Filled || r.OverdueNotified {
			continue
		}
		if now.After(r.DueDate.Time()) {
			if err := q.MarkRequestOverdueNotified(ctx, ev.SessionID, r.ID); err != nil {
				return nil, err
			}
			notices = append(notices, core.Notice{
				Kind: core.MessagePaymentUnfilled,
				Text: "One payment request has not been filled",
			})
		}
	}

	return notices, nil
}
