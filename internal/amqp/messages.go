package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEventMessage represents a committed ledger mutation on the event feed.
// It carries identifiers only; consumers fetch details from the database if
// they need more than the audit trail.
type LedgerEventMessage struct {
	SessionID     int64     `json:"session_id"`
	Action        string    `json:"action"`
	TransactionID int64     `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	BalanceCents  int64     `json:"balance_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEventMessage creates a new event message stamped with the current time
func NewLedgerEventMessage(sessionID int64, action string, transactionID, amountCents, balanceCents int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		SessionID:     sessionID,
		Action:        action,
		TransactionID: transactionID,
		AmountCents:   amountCents,
		BalanceCents:  balanceCents,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
