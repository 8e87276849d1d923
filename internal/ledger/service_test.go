package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dime/internal/category"
	"dime/internal/core"
	"dime/internal/goals"
	"dime/internal/notify"
	"dime/internal/payments"
	"dime/internal/rules"
	"dime/internal/session"
	"dime/internal/storage"
)

type testStack struct {
	svc        *Service
	sessions   *session.Store
	categories *category.Service
	rules      *rules.Engine
	goals      *goals.Tracker
	payments   *payments.Tracker
	notifier   *notify.Engine
	sessionID  int64
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessions := session.NewStore(db)
	notifier := notify.NewEngine(db, sessions)
	ruleEngine := rules.NewEngine(db, sessions)
	goalTracker := goals.NewTracker(db, sessions)
	paymentTracker := payments.NewTracker(db, sessions)
	svc := NewService(db, sessions, notifier,
		[]Observer{ruleEngine, goalTracker, paymentTracker}, nil)

	sess, err := sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	return &testStack{
		svc:        svc,
		sessions:   sessions,
		categories: category.NewService(db, sessions),
		rules:      ruleEngine,
		goals:      goalTracker,
		payments:   paymentTracker,
		notifier:   notifier,
		sessionID:  sess.ID,
	}
}

func txInput(t *testing.T, date string, amount core.Money, typ core.TransactionType) core.TransactionInput {
	t.Helper()
	d, err := core.ParseDateTime(date)
	if err != nil {
		t.Fatalf("parse date %q: %v", date, err)
	}
	iban := "NL39RABO0300065264"
	desc := "test transaction"
	return core.TransactionInput{
		Date:         &d,
		Amount:       &amount,
		ExternalIBAN: &iban,
		Type:         &typ,
		Description:  &desc,
	}
}

func (ts *testStack) mustInsert(t *testing.T, date string, amount core.Money, typ core.TransactionType) core.Transaction {
	t.Helper()
	tx, err := ts.svc.Insert(context.Background(), ts.sessionID, txInput(t, date, amount, typ))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return tx
}

func (ts *testStack) messages(t *testing.T) []core.Message {
	t.Helper()
	msgs, err := ts.notifier.List(context.Background(), ts.sessionID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	return msgs
}

func TestInsertComputesRunningBalance(t *testing.T) {
	ts := newTestStack(t)

	dep := ts.mustInsert(t, "2018-01-01T10:00:00", 10000, core.Deposit)
	if dep.Balance != 10000 {
		t.Errorf("deposit balance = %d, want 10000", dep.Balance)
	}
	wd := ts.mustInsert(t, "2018-01-02T10:00:00", 4000, core.Withdrawal)
	if wd.Balance != 6000 {
		t.Errorf("withdrawal balance = %d, want 6000", wd.Balance)
	}
}

func TestInsertEchoesDate(t *testing.T) {
	ts := newTestStack(t)
	tx := ts.mustInsert(t, "2018-03-31T22:27:09.140", 1500, core.Deposit)
	if tx.Date.String() != "2018-03-31T22:27:09.140" {
		t.Errorf("date changed: %q", tx.Date.String())
	}
}

func TestBackdatedInsertResequences(t *testing.T) {
	ts := newTestStack(t)

	ts.mustInsert(t, "2018-02-01T00:00:00", 10000, core.Deposit)
	late := ts.mustInsert(t, "2018-03-01T00:00:00", 2000, core.Withdrawal)

	// Lands between the two existing rows in date order.
	mid := ts.mustInsert(t, "2018-02-15T00:00:00", 5000, core.Withdrawal)
	if mid.Balance != 5000 {
		t.Errorf("backdated balance = %d, want 5000", mid.Balance)
	}

	got, err := ts.svc.Get(context.Background(), ts.sessionID, late.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 3000 {
		t.Errorf("downstream balance = %d, want 3000", got.Balance)
	}
}

func TestUpdateResequences(t *testing.T) {
	ts := newTestStack(t)

	first := ts.mustInsert(t, "2018-01-01T00:00:00", 10000, core.Deposit)
	second := ts.mustInsert(t, "2018-01-02T00:00:00", 1000, core.Withdrawal)

	updated, err := ts.svc.Update(context.Background(), ts.sessionID, first.ID,
		txInput(t, "2018-01-01T00:00:00", 500, core.Deposit))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Balance != 500 {
		t.Errorf("updated balance = %d, want 500", updated.Balance)
	}
	got, err := ts.svc.Get(context.Background(), ts.sessionID, second.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != -500 {
		t.Errorf("downstream balance = %d, want -500", got.Balance)
	}
}

func TestDeleteResequencesAndReturnsNotFoundAfter(t *testing.T) {
	ts := newTestStack(t)

	victim := ts.mustInsert(t, "2018-01-01T00:00:00", 10000, core.Deposit)
	survivor := ts.mustInsert(t, "2018-01-02T00:00:00", 3000, core.Deposit)

	if err := ts.svc.Delete(context.Background(), ts.sessionID, victim.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ts.svc.Get(context.Background(), ts.sessionID, victim.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get deleted: want ErrNotFound, got %v", err)
	}
	got, err := ts.svc.Get(context.Background(), ts.sessionID, survivor.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance != 3000 {
		t.Errorf("balance after delete = %d, want 3000", got.Balance)
	}
}

func TestRecomputeLawHolds(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	dates := []string{
		"2018-03-01T00:00:00",
		"2018-01-01T00:00:00",
		"2018-02-01T00:00:00",
		"2018-01-15T00:00:00",
	}
	for i, d := range dates {
		typ := core.Deposit
		if i%2 == 1 {
			typ = core.Withdrawal
		}
		ts.mustInsert(t, d, core.Money(1000*(int64(i)+1)), typ)
	}

	txs, err := ts.svc.List(ctx, ts.sessionID, ListParams{Limit: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	byDate := make([]core.Transaction, len(txs))
	copy(byDate, txs)
	for i := 0; i < len(byDate); i++ {
		for j := i + 1; j < len(byDate); j++ {
			if byDate[j].Date.Before(byDate[i].Date) {
				byDate[i], byDate[j] = byDate[j], byDate[i]
			}
		}
	}
	var running core.Money
	for _, tx := range byDate {
		running += tx.Signed()
		if tx.Balance != running {
			t.Errorf("transaction %d: balance %d, want %d", tx.ID, tx.Balance, running)
		}
	}
}

func TestListPagination(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		ts.mustInsert(t, "2018-01-01T00:00:00", 100, core.Deposit)
	}

	t.Run("default limit", func(t *testing.T) {
		txs, err := ts.svc.List(ctx, ts.sessionID, ListParams{Limit: 20})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(txs) != 20 {
			t.Errorf("got %d transactions, want 20", len(txs))
		}
	})
	t.Run("limit clamps high", func(t *testing.T) {
		txs, err := ts.svc.List(ctx, ts.sessionID, ListParams{Limit: 100})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(txs) != 20 {
			t.Errorf("got %d transactions, want 20", len(txs))
		}
	})
	t.Run("offset shifts ids", func(t *testing.T) {
		all, err := ts.svc.List(ctx, ts.sessionID, ListParams{Limit: 2})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		shifted, err := ts.svc.List(ctx, ts.sessionID, ListParams{Offset: 1, Limit: 2})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if shifted[0].ID != all[0].ID+1 {
			t.Errorf("offset 1 starts at id %d, want %d", shifted[0].ID, all[0].ID+1)
		}
	})
	t.Run("negative offset clamps to zero", func(t *testing.T) {
		txs, err := ts.svc.List(ctx, ts.sessionID, ListParams{Offset: -5, Limit: 1})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(txs) != 1 || txs[0].ID != 1 {
			t.Errorf("want first transaction, got %+v", txs)
		}
	})
}

func TestListCategoryFilter(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	name := "Groceries"
	cat, err := ts.categories.Create(ctx, ts.sessionID, core.CategoryInput{Name: &name})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	tagged := ts.mustInsert(t, "2018-01-01T00:00:00", 100, core.Deposit)
	ts.mustInsert(t, "2018-01-02T00:00:00", 100, core.Deposit)

	if _, err := ts.svc.SetCategory(ctx, ts.sessionID, tagged.ID, cat.ID); err != nil {
		t.Fatalf("set category: %v", err)
	}

	txs, err := ts.svc.List(ctx, ts.sessionID, ListParams{Limit: 20, Category: &cat.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != tagged.ID {
		t.Errorf("filter returned %+v", txs)
	}
	if txs[0].Category == nil || txs[0].Category.Name != "Groceries" {
		t.Errorf("category not embedded: %+v", txs[0].Category)
	}
}

func TestSetCategoryUnknownCategory(t *testing.T) {
	ts := newTestStack(t)
	tx := ts.mustInsert(t, "2018-01-01T00:00:00", 100, core.Deposit)
	if _, err := ts.svc.SetCategory(context.Background(), ts.sessionID, tx.ID, 999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestUnknownSessionRejected(t *testing.T) {
	ts := newTestStack(t)
	badSession := ts.sessionID + 100

	if _, err := ts.svc.Insert(context.Background(), badSession,
		txInput(t, "2018-01-01T00:00:00", 100, core.Deposit)); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("insert: want ErrUnauthorized, got %v", err)
	}
	if _, err := ts.svc.List(context.Background(), badSession, ListParams{Limit: 20}); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("list: want ErrUnauthorized, got %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	other, err := ts.sessions.Create(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	tx := ts.mustInsert(t, "2018-01-01T00:00:00", 100, core.Deposit)

	if _, err := ts.svc.Get(ctx, other.ID, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-session get: want ErrNotFound, got %v", err)
	}
	txs, err := ts.svc.List(ctx, other.ID, ListParams{Limit: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("other session sees %d transactions", len(txs))
	}
}

func TestNegativeBalanceMessage(t *testing.T) {
	ts := newTestStack(t)

	ts.mustInsert(t, "2018-01-01T00:00:00", 100, core.Withdrawal)
	msgs := ts.messages(t)
	if len(msgs) != 1 || msgs[0].Text != "Balance is negative" {
		t.Fatalf("messages = %+v", msgs)
	}

	// Still negative, no edge, no second message.
	ts.mustInsert(t, "2018-01-02T00:00:00", 100, core.Withdrawal)
	if got := len(ts.messages(t)); got != 1 {
		t.Errorf("messages after second withdrawal = %d, want 1", got)
	}

	// Recover, then cross below zero again.
	ts.mustInsert(t, "2018-01-03T00:00:00", 1000, core.Deposit)
	ts.mustInsert(t, "2018-01-04T00:00:00", 2000, core.Withdrawal)
	var negatives int
	for _, m := range ts.messages(t) {
		if m.Text == "Balance is negative" {
			negatives++
		}
	}
	if negatives != 2 {
		t.Errorf("negative messages = %d, want 2", negatives)
	}
}

func TestNewHighSuppressedWhileUnread(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	ts.mustInsert(t, "2018-01-01T00:00:00", 100, core.Deposit)
	before := len(ts.messages(t))

	// Another new high while the first notification is unread.
	ts.mustInsert(t, "2018-01-02T00:00:00", 200, core.Deposit)
	msgs := ts.messages(t)
	if len(msgs) != before {
		t.Fatalf("suppression failed: %d messages, want %d", len(msgs), before)
	}

	for _, m := range msgs {
		if _, err := ts.notifier.MarkRead(ctx, ts.sessionID, m.ID); err != nil {
			t.Fatalf("mark read: %v", err)
		}
	}

	ts.mustInsert(t, "2018-01-03T00:00:00", 300, core.Deposit)
	msgs = ts.messages(t)
	if len(msgs) != before+1 {
		t.Fatalf("messages after read = %d, want %d", len(msgs), before+1)
	}
	last := msgs[len(msgs)-1]
	if last.Text != "Balance reached new high" {
		t.Errorf("last message = %q", last.Text)
	}
}

func TestHistoryBuckets(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()
	now := time.Date(2018, 6, 15, 12, 0, 0, 0, time.UTC)
	ts.svc.now = func() time.Time { return now }

	// An hour before each month edge keeps every row strictly inside its
	// bucket.
	insertAt := func(offsetMonths int, amount core.Money, typ core.TransactionType) {
		d := core.NewDateTime(now.AddDate(0, offsetMonths, 0).Add(-time.Hour))
		amt := amount
		iban := "NL39RABO0300065264"
		desc := "history"
		tt := typ
		if _, err := ts.svc.Insert(ctx, ts.sessionID, core.TransactionInput{
			Date: &d, Amount: &amt, ExternalIBAN: &iban, Type: &tt, Description: &desc,
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	insertAt(-2, 10000, core.Deposit)
	insertAt(-1, 3000, core.Withdrawal)
	insertAt(0, 2000, core.Deposit)

	buckets, err := ts.svc.History(ctx, ts.sessionID, IntervalMonth, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3", len(buckets))
	}

	// Bucket 0 holds the first deposit, 1 the withdrawal, 2 the last deposit.
	if buckets[0].Open != 0 || buckets[0].Close != 10000 || buckets[0].Volume != 10000 {
		t.Errorf("bucket 0 = %+v", buckets[0])
	}
	if buckets[1].Open != 10000 || buckets[1].Close != 7000 || buckets[1].Volume != 3000 {
		t.Errorf("bucket 1 = %+v", buckets[1])
	}
	if buckets[2].Open != 7000 || buckets[2].Close != 9000 || buckets[2].High != 9000 {
		t.Errorf("bucket 2 = %+v", buckets[2])
	}
}

func TestHistoryValidation(t *testing.T) {
	ts := newTestStack(t)
	ctx := context.Background()

	if _, err := ts.svc.History(ctx, ts.sessionID, "fortnight", 10); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("unknown interval: want ErrInvalidInput, got %v", err)
	}
	if _, err := ts.svc.History(ctx, ts.sessionID, IntervalMonth, 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("zero intervals: want ErrInvalidInput, got %v", err)
	}
	if _, err := ts.svc.History(ctx, ts.sessionID, IntervalMonth, 201); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("too many intervals: want ErrInvalidInput, got %v", err)
	}
	if _, err := ts.svc.History(ctx, ts.sessionID, IntervalDay, 200); err != nil {
		t.Errorf("200 intervals must be accepted: %v", err)
	}
}
