package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func validTransactionInput() TransactionInput {
	date, _ := ParseDateTime("2018-03-31T22:27:09.140")
	amount := Money(1500)
	iban := "NL39RABO0300065264"
	typ := Deposit
	desc := "groceries"
	return TransactionInput{Date: &date, Amount: &amount, ExternalIBAN: &iban, Type: &typ, Description: &desc}
}

func TestTransactionInputValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		if err := validTransactionInput().Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	t.Run("missing fields", func(t *testing.T) {
		mutations := map[string]func(*TransactionInput){
			"date":         func(in *TransactionInput) { in.Date = nil },
			"amount":       func(in *TransactionInput) { in.Amount = nil },
			"externalIBAN": func(in *TransactionInput) { in.ExternalIBAN = nil },
			"type":         func(in *TransactionInput) { in.Type = nil },
			"description":  func(in *TransactionInput) { in.Description = nil },
		}
		for field, drop := range mutations {
			in := validTransactionInput()
			drop(&in)
			if err := in.Validate(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("missing %s: want ErrInvalidInput, got %v", field, err)
			}
		}
	})
	t.Run("bad type", func(t *testing.T) {
		in := validTransactionInput()
		typ := TransactionType("transfer")
		in.Type = &typ
		if err := in.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("want ErrInvalidInput, got %v", err)
		}
	})
}

func TestCategoryRuleInputAllowsEmptyDescription(t *testing.T) {
	desc := ""
	iban := "NL89INGB0258036901"
	typ := Withdrawal
	catID := int64(1)
	in := CategoryRuleInput{Description: &desc, IBAN: &iban, Type: &typ, CategoryID: &catID}
	if err := in.Validate(); err != nil {
		t.Fatalf("empty description must be accepted: %v", err)
	}
	in.Description = nil
	if err := in.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("absent description must be rejected, got %v", err)
	}
}

func TestSavingGoalInputValidate(t *testing.T) {
	name := "Holiday"
	goal := Money(300000)
	save := Money(150000)
	in := SavingGoalInput{Name: &name, Goal: &goal, SavePerMonth: &save}
	if err := in.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := Money(-120000)
	in.Goal = &bad
	if err := in.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative goal must be rejected, got %v", err)
	}
}

func TestTransactionSigned(t *testing.T) {
	tx := Transaction{Amount: 1000, Type: Deposit}
	if tx.Signed() != 1000 {
		t.Errorf("deposit sign wrong: %d", tx.Signed())
	}
	tx.Type = Withdrawal
	if tx.Signed() != -1000 {
		t.Errorf("withdrawal sign wrong: %d", tx.Signed())
	}
}

func TestTransactionJSONNullCategory(t *testing.T) {
	date, _ := ParseDateTime("2018-03-31T22:27:09.140")
	tx := Transaction{ID: 1, Date: date, Amount: 1500, ExternalIBAN: "testIBAN", Type: Deposit, Balance: 1500}
	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, ok := decoded["category"]
	if !ok {
		t.Fatal("category field must be present")
	}
	if v != nil {
		t.Errorf("unclassified transaction must serialize category as null, got %v", v)
	}
}
