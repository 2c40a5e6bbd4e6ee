package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the denomination of an account.
type Currency string

const (
	// UYU is the Uruguayan peso, the base currency all conversions pivot through.
	UYU Currency = "UYU"
	// USD is the US dollar.
	USD Currency = "USD"
	// UI is the Unidad Indexada, an inflation-indexed unit of account.
	UI Currency = "UI"
)

// BaseCurrency is the fixed reference currency.
const BaseCurrency = UYU

// Currencies lists every supported currency, base first.
var Currencies = []Currency{UYU, USD, UI}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	switch c {
	case UYU, USD, UI:
		return true
	}
	return false
}

// ParseCurrency normalizes s and checks it against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// AccountType classifies an account for display purposes.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountInvestment AccountType = "investment"
	AccountCash       AccountType = "cash"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountInvestment, AccountCash:
		return true
	}
	return false
}

// Account is a user-owned container of money in a single currency.
//
// Currency and InitialBalance anchor the account's history: changing
// InitialBalance shifts every computed balance of the account.
type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Currency       Currency        `json:"currency"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Icon           string          `json:"icon,omitempty"`
}

// AccountPatch is a partial account update. Nil fields are left untouched.
type AccountPatch struct {
	Name           *string          `json:"name,omitempty"`
	Type           *AccountType     `json:"type,omitempty"`
	Currency       *Currency        `json:"currency,omitempty"`
	InitialBalance *decimal.Decimal `json:"initialBalance,omitempty"`
	Icon           *string          `json:"icon,omitempty"`
}

// Apply returns a copy of a with the patch applied.
func (p AccountPatch) Apply(a Account) Account {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Currency != nil {
		a.Currency = *p.Currency
	}
	if p.InitialBalance != nil {
		a.InitialBalance = *p.InitialBalance
	}
	if p.Icon != nil {
		a.Icon = *p.Icon
	}
	return a
}

// IsEmpty reports whether the patch changes nothing.
func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Currency == nil && p.InitialBalance == nil && p.Icon == nil
}
