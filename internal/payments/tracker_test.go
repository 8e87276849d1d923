package payments

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dime/internal/core"
	"dime/internal/session"
	"dime/internal/storage"
)

type testEnv struct {
	db        *sql.DB
	q         *storage.Queries
	tracker   *Tracker
	sessionID int64
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessions := session.NewStore(db)
	sess, err := sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	env := &testEnv{
		db:        db,
		q:         storage.New(db),
		tracker:   NewTracker(db, sessions),
		sessionID: sess.ID,
		now:       time.Date(2018, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	env.tracker.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) createRequest(t *testing.T, amount core.Money, count int64, dueOffsetMonths int) core.PaymentRequest {
	t.Helper()
	desc := "Utility bill"
	due := core.NewDateTime(e.now.AddDate(0, dueOffsetMonths, 0))
	pr, err := e.tracker.Create(context.Background(), e.sessionID, core.PaymentRequestInput{
		Description:      &desc,
		DueDate:          &due,
		Amount:           &amount,
		NumberOfRequests: &count,
	})
	if err != nil {
		t.Fatalf("create payment request: %v", err)
	}
	return pr
}

// deposit seeds a transaction row and returns the matching insert event.
func (e *testEnv) deposit(t *testing.T, amount core.Money, dateOffsetDays int) core.LedgerEvent {
	t.Helper()
	date := core.NewDateTime(e.now.AddDate(0, 0, dateOffsetDays))
	tx, err := e.q.InsertTransaction(context.Background(), e.sessionID, core.Transaction{
		Date:         date,
		Amount:       amount,
		ExternalIBAN: "NL39RABO0300065264",
		Type:         core.Deposit,
		Description:  "payment",
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return core.LedgerEvent{
		SessionID:   e.sessionID,
		Action:      core.ActionInsert,
		Transaction: tx,
		Sequence:    []core.Transaction{tx},
	}
}

func TestDepositFillsRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createRequest(t, 5000, 1, 2)

	notices, err := env.tracker.OnLedgerMutation(ctx, env.q, env.deposit(t, 5000, 0))
	if err != nil {
		t.Fatalf("mutation: %v", err)
	}
	if len(notices) != 1 || notices[0].Text != "One payment request has been filled" {
		t.Fatalf("notices = %+v", notices)
	}

	requests, err := env.tracker.List(ctx, env.sessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !requests[0].Filled || len(requests[0].Transactions) != 1 {
		t.Errorf("request = %+v", requests[0])
	}
}

func TestPartialFillNoNotice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createRequest(t, 5000, 2, 2)

	notices, err := env.tracker.OnLedgerMutation(ctx, env.q, env.deposit(t, 5000, 0))
	if err != nil {
		t.Fatalf("mutation: %v", err)
	}
	if len(notices) != 0 {
		t.Fatalf("partial fill produced notices: %+v", notices)
	}

	notices, err = env.tracker.OnLedgerMutation(ctx, env.q, env.deposit(t, 5000, 1))
	if err != nil {
		t.Fatalf("mutation: %v", err)
	}
	if len(notices) != 1 || notices[0].Kind != core.MessagePaymentFilled {
		t.Fatalf("notices = %+v", notices)
	}
}

func TestAmountMustMatchExactly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createRequest(t, 5000, 1, 2)

	if _, err := env.tracker.OnLedgerMutation(ctx, env.q, env.deposit(t, 4999, 0)); err != nil {
		t.Fatalf("mutation: %v", err)
	}
	requests, err := env.tracker.List(ctx, env.sessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(requests[0].Transactions) != 0 {
		t.Errorf("near-miss amount matched: %+v", requests[0].Transactions)
	}
}

func TestWithdrawalNeverMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createRequest(t, 5000, 1, 2)

	date := core.NewDateTime(env.now)
	tx, err := env.q.InsertTransaction(ctx, env.sessionID, core.Transaction{
		Date:         date,
		Amount:       5000,
		ExternalIBAN: "NL39RABO0300065264",
		Type:         core.Withdrawal,
		Description:  "payment",
	})
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	ev := core.LedgerEvent{SessionID: env.sessionID, Action: core.ActionInsert, Transaction: tx}
	if _, err := env.tracker.OnLedgerMutation(ctx, env.q, ev); err != nil {
		t.Fatalf("mutation: %v", err)
	}

	requests, err := env.tracker.List(ctx, env.sessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(requests[0].Transactions) != 0 {
		t.Errorf("withdrawal matched: %+v", requests[0].Transactions)
	}
}

func TestLateDepositDoesNotMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createRequest(t, 5000, 1, -1)

	notices, err := env.tracker.OnLedgerMutation(ctx, env.q, env.deposit(t, 5000, 0))
	if err != nil {
		t.Fatalf("mutation: %v", err)
	}
	requests, err := env.tracker.List(ctx, env.sessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(requests[0].Transactions) != 0 {
		t.Errorf("late deposit matched: %+v", requests[0].Transactions)
	}

	// Instead the overdue sweep flags it, once.
	if len(notices) != 1 || notices[0].Text != "One payment request has not been filled" {
		t.Fatalf("notices = %+v", notices)
	}
	notices, err = env.tracker.OnLedgerMutation(ctx, env.q, env.deposit(t, 100, 0))
	if err != nil {
		t.Fatalf("mutation: %v", err)
	}
	if len(notices) != 0 {
		t.Errorf("overdue notice fired twice: %+v", notices)
	}
}

func TestFilledRequestIsNeverOverdue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createRequest(t, 5000, 1, 1)
	if _, err := env.tracker.OnLedgerMutation(ctx, env.q, env.deposit(t, 5000, 0)); err != nil {
		t.Fatalf("mutation: %v", err)
	}

	// Past the due date now.
	env.now = env.now.AddDate(0, 2, 0)
	notices, err := env.tracker.OnLedgerMutation(ctx, env.q, env.deposit(t, 100, 0))
	if err != nil {
		t.Fatalf("mutation: %v", err)
	}
	for _, n := range notices {
		if n.Kind == core.MessagePaymentUnfilled {
			t.Errorf("filled request flagged overdue: %+v", notices)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	desc := "bill"
	due := core.NewDateTime(env.now.AddDate(0, 1, 0))
	amount := core.Money(5000)
	count := int64(1)

	tests := []struct {
		name string
		in   core.PaymentRequestInput
	}{
		{"missing description", core.PaymentRequestInput{DueDate: &due, Amount: &amount, NumberOfRequests: &count}},
		{"missing due date", core.PaymentRequestInput{Description: &desc, Amount: &amount, NumberOfRequests: &count}},
		{"missing amount", core.PaymentRequestInput{Description: &desc, DueDate: &due, NumberOfRequests: &count}},
		{"missing count", core.PaymentRequestInput{Description: &desc, DueDate: &due, Amount: &amount}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.tracker.Create(ctx, env.sessionID, tt.in); !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("want ErrInvalidInput, got %v", err)
			}
		})
	}
}
