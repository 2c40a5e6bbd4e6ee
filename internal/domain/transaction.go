package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	Expense  TransactionType = "expense"
	Income   TransactionType = "income"
	Transfer TransactionType = "transfer"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case Expense, Income, Transfer:
		return true
	}
	return false
}

// PaymentMethod records how an expense was paid.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentDebit  PaymentMethod = "debit"
	PaymentCredit PaymentMethod = "credit"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentDebit, PaymentCredit:
		return true
	}
	return false
}

// Transaction is a dated movement of money out of, into, or between accounts.
//
// Amount is always positive and denominated in the currency of AccountID.
// ToAccountID is set iff Type is Transfer; PaymentMethod only for expenses.
type Transaction struct {
	ID            string          `json:"id"`
	Date          civil.Date      `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Type          TransactionType `json:"type"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Merchant      string          `json:"merchant,omitempty"`
	AccountID     string          `json:"accountId"`
	ToAccountID   string          `json:"toAccountId,omitempty"`
	PaymentMethod PaymentMethod   `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// References reports whether t touches the account as source or destination.
func (t Transaction) References(accountID string) bool {
	return t.AccountID == accountID || (t.Type == Transfer && t.ToAccountID == accountID)
}

// TransactionPatch is a partial transaction update. Nil fields are left untouched.
type TransactionPatch struct {
	Date          *civil.Date      `json:"date,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Merchant      *string          `json:"merchant,omitempty"`
	PaymentMethod *PaymentMethod   `json:"paymentMethod,omitempty"`
}

// Apply returns a copy of t with the patch applied.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Merchant != nil {
		t.Merchant = *p.Merchant
	}
	if p.PaymentMethod != nil {
		t.PaymentMethod = *p.PaymentMethod
	}
	return t
}
