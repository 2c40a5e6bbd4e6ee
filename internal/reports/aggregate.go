package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/shopspring/decimal"
)

// CategoryTotal is the summed amount of one category, in base currency.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// MonthFlow is the income and expense of one calendar month, in base currency.
type MonthFlow struct {
	Month   string          `json:"month"` // YYYY-MM
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Normalize returns copies of txs with Amount converted to base currency
// using the source account's currency. Transactions whose source account is
// not in snap are dropped and counted.
func Normalize(txs []domain.Transaction, snap ledger.Snapshot, rates currency.Rates) ([]domain.Transaction, int) {
	out := make([]domain.Transaction, 0, len(txs))
	dropped := 0
	for _, t := range txs {
		acc, ok := snap.Account(t.AccountID)
		if !ok {
			dropped++
			continue
		}
		t.Amount = currency.ToBase(t.Amount, acc.Currency, rates)
		out = append(out, t)
	}
	return out, dropped
}

// ByCategory sums the amounts of the transactions of type typ per category,
// largest first. Amounts must already be normalized to base currency.
func ByCategory(txs []domain.Transaction, typ domain.TransactionType) []CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if t.Type != typ {
			continue
		}
		sums[t.Category] = sums[t.Category].Add(t.Amount)
	}

	out := make([]CategoryTotal, 0, len(sums))
	for c, v := range sums {
		out = append(out, CategoryTotal{Category: c, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Total.Cmp(out[j].Total); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CashFlowByMonth sums income and expense per calendar month, oldest first.
// Amounts must already be normalized to base currency.
func CashFlowByMonth(txs []domain.Transaction) []MonthFlow {
	byMonth := make(map[string]*MonthFlow)
	for _, t := range txs {
		if t.Type != domain.Income && t.Type != domain.Expense {
			continue
		}
		key := fmt.Sprintf("%04d-%02d", t.Date.Year, int(t.Date.Month))
		mf, ok := byMonth[key]
		if !ok {
			mf = &MonthFlow{Month: key, Income: decimal.Zero, Expense: decimal.Zero}
			byMonth[key] = mf
		}
		if t.Type == domain.Income {
			mf.Income = mf.Income.Add(t.Amount)
		} else {
			mf.Expense = mf.Expense.Add(t.Amount)
		}
	}

	out := make([]MonthFlow, 0, len(byMonth))
	for _, mf := range byMonth {
		out = append(out, *mf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Report is the profit-and-loss view of one window, in base currency.
type Report struct {
	Window            Window          `json:"window"`
	Income            decimal.Decimal `json:"income"`
	Expense           decimal.Decimal `json:"expense"`
	Net               decimal.Decimal `json:"net"`
	SavingsRate       decimal.Decimal `json:"savingsRate"` // percent of income
	ExpenseByCategory []CategoryTotal `json:"expenseByCategory"`
	IncomeByCategory  []CategoryTotal `json:"incomeByCategory"`
	CashFlow          []MonthFlow     `json:"cashFlow"`
	// Excluded counts transactions dropped because their account is unknown.
	Excluded int `json:"excluded"`
}

var hundred = decimal.NewFromInt(100)

// Build assembles the report for window w.
func Build(snap ledger.Snapshot, rates currency.Rates, w Window, now time.Time) Report {
	txs, dropped := Normalize(FilterWindow(snap.Transactions, w, now), snap, rates)

	r := Report{
		Window:            w,
		Income:            decimal.Zero,
		Expense:           decimal.Zero,
		SavingsRate:       decimal.Zero,
		ExpenseByCategory: ByCategory(txs, domain.Expense),
		IncomeByCategory:  ByCategory(txs, domain.Income),
		CashFlow:          CashFlowByMonth(txs),
		Excluded:          dropped,
	}
	for _, t := range txs {
		switch t.Type {
		case domain.Income:
			r.Income = r.Income.Add(t.Amount)
		case domain.Expense:
			r.Expense = r.Expense.Add(t.Amount)
		}
	}
	r.Net = r.Income.Sub(r.Expense)
	if r.Income.IsPositive() {
		r.SavingsRate = r.Net.Div(r.Income).Mul(hundred).Round(2)
	}
	return r
}
