// Package worker implements the out-of-process consumer for the ledger
// event feed. It turns committed mutations into an audit log and keeps
// running counters so operators can see feed activity at a glance.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"dime/internal/amqp"
)

// AuditWorker records ledger events delivered over AMQP.
type AuditWorker struct {
	inserts atomic.Int64
	updates atomic.Int64
	deletes atomic.Int64
	started time.Time
}

func NewAuditWorker() *AuditWorker {
	return &AuditWorker{started: time.Now()}
}

// HandleLedgerEvent processes a single event from the feed. Unknown
// actions are rejected so the broker dead-letters malformed messages
// instead of requeueing them forever.
func (w *AuditWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	switch msg.Action {
	case "insert":
		w.inserts.Add(1)
	case "update":
		w.updates.Add(1)
	case "delete":
		w.deletes.Add(1)
	default:
		return fmt.Errorf("unknown ledger action %q", msg.Action)
	}

	slog.InfoContext(ctx, "Ledger event recorded",
		"session_id", msg.SessionID,
		"action", msg.Action,
		"transaction_id", msg.TransactionID,
		"amount_cents", msg.AmountCents,
		"balance_cents", msg.BalanceCents,
		"event_time", msg.Timestamp.Format(time.RFC3339))

	if msg.BalanceCents < 0 {
		slog.WarnContext(ctx, "Session balance went negative",
			"session_id", msg.SessionID,
			"balance_cents", msg.BalanceCents)
	}

	return nil
}

// Stats returns the number of events recorded per action since startup.
func (w *AuditWorker) Stats() (inserts, updates, deletes int64) {
	return w.inserts.Load(), w.updates.Load(), w.deletes.Load()
}

// LogStats emits a periodic summary line.
func (w *AuditWorker) LogStats(ctx context.Context) {
	inserts, updates, deletes := w.Stats()
	slog.InfoContext(ctx, "Audit worker stats",
		"inserts", inserts,
		"updates", updates,
		"deletes", deletes,
		"uptime", time.Since(w.started).Round(time.Second).String())
}

// RunStatsLoop logs stats on the given interval until ctx is cancelled.
func (w *AuditWorker) RunStatsLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.LogStats(ctx)
			return ctx.Err()
		case <-ticker.C:
			w.LogStats(ctx)
		}
	}
}
