package ledger

import (
	"context"
	"fmt"
	"time"

	"dime/internal/core"
)

// Intervals accepted by History.
const (
	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// MaxHistoryIntervals bounds how far back a history query may reach.
const MaxHistoryIntervals = 200

// Bucket is one candlestick of the balance history.
type Bucket struct {
	Open      core.Money    `json:"open"`
	Close     core.Money    `json:"close"`
	High      core.Money    `json:"high"`
	Low       core.Money    `json:"low"`
	Volume    core.Money    `json:"volume"`
	Timestamp core.DateTime `json:"timestamp"`
}

// History aggregates the session ledger into count consecutive windows of
// the given interval ending now, oldest first. Empty windows carry the
// balance flat.
func (s *Service) History(ctx context.Context, sessionID int64, interval string, count int) ([]Bucket, error) {
	if err := s.sessions.Require(ctx, sessionID); err != nil {
		return nil, err
	}
	step, err := intervalStep(interval)
	if err != nil {
		return nil, err
	}
	if count < 1 || count > MaxHistoryIntervals {
		return nil, fmt.Errorf("%w: intervals must be between 1 and %d", core.ErrInvalidInput, MaxHistoryIntervals)
	}

	txs, err := s.q.ListTransactionsByDate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	edges := make([]time.Time, count+1)
	edges[count] = s.now().UTC()
	for k := count - 1; k >= 0; k-- {
		edges[k] = step(edges[k+1])
	}

	// Consume everything before the window to seed the opening balance.
	j := 0
	var carry core.Money
	for j < len(txs) && txs[j].Date.Time().Before(edges[0]) {
		carry = txs[j].Balance
		j++
	}

	buckets := make([]Bucket, count)
	for i := 0; i < count; i++ {
		b := Bucket{
			Open:      carry,
			Close:     carry,
			High:      carry,
			Low:       carry,
			Timestamp: core.NewDateTime(edges[i]),
		}
		for j < len(txs) && txs[j].Date.Time().Before(edges[i+1]) {
			bal := txs[j].Balance
			if bal > b.High {
				b.High = bal
			}
			if bal < b.Low {
				b.Low = bal
			}
			b.Close = bal
			b.Volume += txs[j].Amount
			j++
		}
		carry = b.Close
		buckets[i] = b
	}
	return buckets, nil
}

func intervalStep(interval string) (func(time.Time) time.Time, error) {
	switch interval {
	case IntervalDay:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, -1) }, nil
	case IntervalWeek:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, -7) }, nil
	case IntervalMonth:
		return func(t time.Time) time.Time { return t.AddDate(0, -1, 0) }, nil
	case IntervalYear:
		return func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) }, nil
	default:
		return nil, fmt.Errorf("%w: unknown interval %q", core.ErrInvalidInput, interval)
	}
}
