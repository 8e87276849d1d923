package storage

import (
	"context"
	"fmt"

	"dime/internal/core"
)

func (q *Queries) CreatePaymentRequest(ctx context.Context, sessionID int64, pr core.PaymentRequest) (core.PaymentRequest, error) {
	id, err := q.nextID(ctx, "payment_requests", sessionID)
	if err != nil {
		return core.PaymentRequest{}, err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO payment_requests (session_id, id, description, due_date_raw, due_date_ns, amount_cents, number_of_requests, overdue_notified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		sessionID, id, pr.Description, pr.DueDate.String(), pr.DueDate.UnixNano(),
		int64(pr.Amount), pr.NumberOfRequests)
	if err != nil {
		return core.PaymentRequest{}, fmt.Errorf("create payment request: %w", err)
	}
	pr.ID = id
	pr.Transactions = []core.Transaction{}
	return pr, nil
}

// ListPaymentRequests returns the session's requests in creation order,
// matched transactions included.
func (q *Queries) ListPaymentRequests(ctx context.Context, sessionID int64) ([]core.PaymentRequest, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, description, due_date_raw, due_date_ns, amount_cents, number_of_requests, overdue_notified
		 FROM payment_requests WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list payment requests: %w", err)
	}
	defer rows.Close()

	requests := []core.PaymentRequest{}
	for rows.Next() {
		var (
			pr     core.PaymentRequest
			dueRaw string
			dueNS  int64
		)
		if err := rows.Scan(&pr.ID, &pr.Description, &dueRaw, &dueNS, &pr.Amount, &pr.NumberOfRequests, &pr.OverdueNotified); err != nil {
			return nil, fmt.Errorf("scan payment request: %w", err)
		}
		pr.DueDate = core.RestoreDateTime(dueRaw, dueNS)
		requests = append(requests, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range requests {
		txs, err := q.ListRequestTransactions(ctx, sessionID, requests[i].ID)
		if err != nil {
			return nil, err
		}
		requests[i].Transactions = txs
		requests[i].Filled = int64(len(txs)) >= requests[i].NumberOfRequests
	}
	return requests, nil
}

// ListRequestTransactions returns the transactions matched to a request
// in matching order.
func (q *Queries) ListRequestTransactions(ctx context.Context, sessionID, requestID int64) ([]core.Transaction, error) {
	return q.collectTransactions(ctx,
		"SELECT "+transactionColumns+transactionFrom+
			` JOIN payment_request_transactions prt
			   ON prt.session_id = t.session_id AND prt.transaction_id = t.id
			 WHERE t.session_id = ? AND prt.request_id = ?
			 ORDER BY prt.position`,
		sessionID, requestID)
}

func (q *Queries) CountRequestTransactions(ctx context.Context, sessionID, requestID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payment_request_transactions WHERE session_id = ? AND request_id = ?",
		sessionID, requestID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count request transactions: %w", err)
	}
	return n, nil
}

func (q *Queries) AppendRequestTransaction(ctx context.Context, sessionID, requestID, transactionID int64) error {
	n, err := q.CountRequestTransactions(ctx, sessionID, requestID)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx,
		`INSERT INTO payment_request_transactions (session_id, request_id, transaction_id, position)
		 VALUES (?, ?, ?, ?)`,
		sessionID, requestID, transactionID, n+1); err != nil {
		return fmt.Errorf("append request transaction: %w", err)
	}
	return nil
}

func (q *Queries) MarkRequestOverdueNotified(ctx context.Context, sessionID, requestID int64) error {
	if _, err := q.db.ExecContext(ctx,
		"UPDATE payment_requests SET overdue_notified = 1 WHERE session_id = ? AND id = ?",
		sessionID, requestID); err != nil {
		return fmt.Errorf("mark payment request notified: %w", err)
	}
	return nil
}
