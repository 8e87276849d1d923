package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dime/internal/core"
)

const transactionColumns = `t.id, t.date_raw, t.date_ns, t.amount_cents, t.external_iban,
	t.type, t.description, t.balance_cents, c.id, c.name`

const transactionFrom = ` FROM transactions t
	LEFT JOIN categories c ON c.session_id = t.session_id AND c.id = t.category_id`

func scanTransaction(scan func(...any) error) (core.Transaction, error) {
	var (
		tx      core.Transaction
		dateRaw string
		dateNS  int64
		catID   sql.NullInt64
		catName sql.NullString
	)
	err := scan(&tx.ID, &dateRaw, &dateNS, &tx.Amount, &tx.ExternalIBAN,
		&tx.Type, &tx.Description, &tx.Balance, &catID, &catName)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Date = core.RestoreDateTime(dateRaw, dateNS)
	if catID.Valid {
		tx.Category = &core.Category{ID: catID.Int64, Name: catName.String}
	}
	return tx, nil
}

func (q *Queries) InsertTransaction(ctx context.Context, sessionID int64, tx core.Transaction) (core.Transaction, error) {
	id, err := q.nextID(ctx, "transactions", sessionID)
	if err != nil {
		return core.Transaction{}, err
	}
	var catID any
	if tx.Category != nil {
		catID = tx.Category.ID
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO transactions (session_id, id, date_raw, date_ns, amount_cents, external_iban, type, description, category_id, balance_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		sessionID, id, tx.Date.String(), tx.Date.UnixNano(), int64(tx.Amount),
		tx.ExternalIBAN, string(tx.Type), tx.Description, catID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.ID = id
	return tx, nil
}

func (q *Queries) GetTransaction(ctx context.Context, sessionID, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+transactionFrom+" WHERE t.session_id = ? AND t.id = ?",
		sessionID, id)
	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (q *Queries) collectTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ListTransactions pages the session's transactions by id. A non-nil
// categoryID narrows the result to that exact category.
func (q *Queries) ListTransactions(ctx context.Context, sessionID, offset, limit int64, categoryID *int64) ([]core.Transaction, error) {
	if categoryID != nil {
		return q.collectTransactions(ctx,
			"SELECT "+transactionColumns+transactionFrom+
				" WHERE t.session_id = ? AND t.category_id = ? ORDER BY t.id LIMIT ? OFFSET ?",
			sessionID, *categoryID, limit, offset)
	}
	return q.collectTransactions(ctx,
		"SELECT "+transactionColumns+transactionFrom+
			" WHERE t.session_id = ? ORDER BY t.id LIMIT ? OFFSET ?",
		sessionID, limit, offset)
}

// ListTransactionsByDate returns the whole session ledger in balance
// order: date ascending, insertion order breaking ties.
func (q *Queries) ListTransactionsByDate(ctx context.Context, sessionID int64) ([]core.Transaction, error) {
	return q.collectTransactions(ctx,
		"SELECT "+transactionColumns+transactionFrom+
			" WHERE t.session_id = ? ORDER BY t.date_ns, t.id",
		sessionID)
}

// UpdateTransaction replaces the mutable fields, leaving the category to
// the rule engine.
func (q *Queries) UpdateTransaction(ctx context.Context, sessionID int64, tx core.Transaction) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET date_raw = ?, date_ns = ?, amount_cents = ?, external_iban = ?, type = ?, description = ?
		 WHERE session_id = ? AND id = ?`,
		tx.Date.String(), tx.Date.UnixNano(), int64(tx.Amount), tx.ExternalIBAN,
		string(tx.Type), tx.Description, sessionID, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", tx.ID, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) DeleteTransaction(ctx context.Context, sessionID, id int64) error {
	if _, err := q.db.ExecContext(ctx,
		"DELETE FROM payment_request_transactions WHERE session_id = ? AND transaction_id = ?",
		sessionID, id); err != nil {
		return fmt.Errorf("unlink transaction from payment requests: %w", err)
	}
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE session_id = ? AND id = ?",
		sessionID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// SetTransactionCategory assigns (or clears, with nil) a category.
func (q *Queries) SetTransactionCategory(ctx context.Context, sessionID, id int64, categoryID *int64) error {
	var cat any
	if categoryID != nil {
		cat = *categoryID
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE transactions SET category_id = ? WHERE session_id = ? AND id = ?",
		cat, sessionID, id)
	if err != nil {
		return fmt.Errorf("set transaction category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set transaction category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (q *Queries) SetTransactionBalance(ctx context.Context, sessionID, id int64, balance core.Money) error {
	if _, err := q.db.ExecContext(ctx,
		"UPDATE transactions SET balance_cents = ? WHERE session_id = ? AND id = ?",
		int64(balance), sessionID, id); err != nil {
		return fmt.Errorf("set transaction balance: %w", err)
	}
	return nil
}
