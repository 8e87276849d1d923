package core

import (
	"fmt"
	"time"
)

const (
	Deposit    TransactionType = "deposit"
	Withdrawal TransactionType = "withdrawal"
)

type (
	TransactionType string

	Session struct {
		ID        int64     `json:"id"`
		CreatedAt time.Time `json:"-"`
	}

	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	CategoryRule struct {
		ID             int64           `json:"id"`
		Description    string          `json:"description"`
		IBAN           string          `json:"IBAN"`
		Type           TransactionType `json:"type"`
		CategoryID     int64           `json:"categoryId"`
		ApplyOnHistory bool            `json:"applyOnHistory"`
	}

	Transaction struct {
		ID           int64           `json:"id"`
		Date         DateTime        `json:"date"`
		Amount       Money           `json:"amount"`
		ExternalIBAN string          `json:"externalIBAN"`
		Type         TransactionType `json:"type"`
		Description  string          `json:"description"`
		Balance      Money           `json:"balance"`
		Category     *Category       `json:"category"`
	}

	SavingGoal struct {
		ID                 int64  `json:"id"`
		Name               string `json:"name"`
		Goal               Money  `json:"goal"`
		SavePerMonth       Money  `json:"savePerMonth"`
		MinBalanceRequired Money  `json:"minBalanceRequired"`
		Balance            Money  `json:"balance"`
		ReachedNotified    bool   `json:"-"`
	}

	PaymentRequest struct {
		ID               int64         `json:"id"`
		Description      string        `json:"description"`
		DueDate          DateTime      `json:"due_date"`
		Amount           Money         `json:"amount"`
		NumberOfRequests int64         `json:"number_of_requests"`
		Transactions     []Transaction `json:"transactions"`
		Filled           bool          `json:"filled"`
		OverdueNotified  bool          `json:"-"`
	}

	Message struct {
		ID        int64       `json:"id"`
		Text      string      `json:"message"`
		Read      bool        `json:"read"`
		Kind      MessageKind `json:"-"`
		CreatedAt time.Time   `json:"-"`
	}
)

// MessageKind tags a message for dedup decisions; it never crosses the wire.
type MessageKind string

const (
	MessageBalanceNegative MessageKind = "balance_negative"
	MessageBalanceHigh     MessageKind = "balance_high"
	MessageGoalReached     MessageKind = "goal_reached"
	MessagePaymentFilled   MessageKind = "payment_filled"
	MessagePaymentUnfilled MessageKind = "payment_unfilled"
)

// Notice is an intent to notify, produced while a ledger mutation is being
// applied. The notification engine decides whether it becomes a message.
type Notice struct {
	Kind MessageKind
	Text string
}

// Signed is the amount with the sign implied by the transaction type.
func (t Transaction) Signed() Money {
	if t.Type == Withdrawal {
		return -t.Amount
	}
	return t.Amount
}

func (t TransactionType) Valid() bool {
	return t == Deposit || t == Withdrawal
}

// LedgerAction identifies what a ledger mutation did.
type LedgerAction string

const (
	ActionInsert LedgerAction = "insert"
	ActionUpdate LedgerAction = "update"
	ActionDelete LedgerAction = "delete"
)

// LedgerEvent describes one committed-to-be mutation. Transaction is the
// post-mutation row (the removed row for deletes) and Sequence is the whole
// session ledger, date-ordered, after balances were recomputed.
type LedgerEvent struct {
	SessionID   int64
	Action      LedgerAction
	Transaction Transaction
	Sequence    []Transaction
}

// TransactionInput carries a create/replace transaction request body.
// Pointer fields distinguish absent from zero-valued.
type TransactionInput struct {
	Date         *DateTime        `json:"date"`
	Amount       *Money           `json:"amount"`
	ExternalIBAN *string          `json:"externalIBAN"`
	Type         *TransactionType `json:"type"`
	Description  *string          `json:"description"`
}

func (in TransactionInput) Validate() error {
	if in.Date == nil {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if in.Amount == nil {
		return fmt.Errorf("%w: amount is required", ErrInvalidInput)
	}
	if *in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.ExternalIBAN == nil || *in.ExternalIBAN == "" {
		return fmt.Errorf("%w: externalIBAN is required", ErrInvalidInput)
	}
	if in.Type == nil {
		return fmt.Errorf("%w: type is required", ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: type must be deposit or withdrawal", ErrInvalidInput)
	}
	if in.Description == nil {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	return nil
}

type CategoryInput struct {
	Name *string `json:"name"`
}

func (in CategoryInput) Validate() error {
	if in.Name == nil || *in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return nil
}

// CategoryRuleInput: description must be present but may be empty, an
// empty description matches every transaction.
type CategoryRuleInput struct {
	Description    *string          `json:"description"`
	IBAN           *string          `json:"IBAN"`
	Type           *TransactionType `json:"type"`
	CategoryID     *int64           `json:"categoryId"`
	ApplyOnHistory *bool            `json:"applyOnHistory"`
}

func (in CategoryRuleInput) Validate() error {
	if in.Description == nil {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if in.IBAN == nil || *in.IBAN == "" {
		return fmt.Errorf("%w: IBAN is required", ErrInvalidInput)
	}
	if in.Type == nil {
		return fmt.Errorf("%w: type is required", ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: type must be deposit or withdrawal", ErrInvalidInput)
	}
	if in.CategoryID == nil {
		return fmt.Errorf("%w: categoryId is required", ErrInvalidInput)
	}
	return nil
}

type SavingGoalInput struct {
	Name               *string `json:"name"`
	Goal               *Money  `json:"goal"`
	SavePerMonth       *Money  `json:"savePerMonth"`
	MinBalanceRequired *Money  `json:"minBalanceRequired"`
}

func (in SavingGoalInput) Validate() error {
	if in.Name == nil || *in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Goal == nil {
		return fmt.Errorf("%w: goal is required", ErrInvalidInput)
	}
	if *in.Goal <= 0 {
		return fmt.Errorf("%w: goal must be positive", ErrInvalidInput)
	}
	if in.SavePerMonth == nil {
		return fmt.Errorf("%w: savePerMonth is required", ErrInvalidInput)
	}
	if *in.SavePerMonth <= 0 {
		return fmt.Errorf("%w: savePerMonth must be positive", ErrInvalidInput)
	}
	if in.MinBalanceRequired != nil && *in.MinBalanceRequired < 0 {
		return fmt.Errorf("%w: minBalanceRequired must not be negative", ErrInvalidInput)
	}
	return nil
}

type PaymentRequestInput struct {
	Description      *string   `json:"description"`
	DueDate          *DateTime `json:"due_date"`
	Amount           *Money    `json:"amount"`
	NumberOfRequests *int64    `json:"number_of_requests"`
}

func (in PaymentRequestInput) Validate() error {
	if in.Description == nil || *in.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if in.DueDate == nil {
		return fmt.Errorf("%w: due_date is required", ErrInvalidInput)
	}
	if in.Amount == nil {
		return fmt.Errorf("%w: amount is required", ErrInvalidInput)
	}
	if *in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.NumberOfRequests == nil {
		return fmt.Errorf("%w: number_of_requests is required", ErrInvalidInput)
	}
	if *in.NumberOfRequests <= 0 {
		return fmt.Errorf("%w: number_of_requests must be positive", ErrInvalidInput)
	}
	return nil
}
