package ledger

import (
	"time"

	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountBalance is an account together with its current balance.
type AccountBalance struct {
	Account       domain.Account  `json:"account"`
	Balance       decimal.Decimal `json:"balance"`
	BalanceInBase decimal.Decimal `json:"balanceInBase"`
}

// Flow is the income and expense of a period, in base currency. Both are
// non-negative magnitudes.
type Flow struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Net is income minus expense.
func (f Flow) Net() decimal.Decimal {
	return f.Income.Sub(f.Expense)
}

// Balance returns the current balance of acc, denominated in acc.Currency.
//
// Transactions from acc debit (expense, transfer) or credit (income) it.
// Transfers into acc credit the amount verbatim when the source shares acc's
// currency, otherwise converted through the base currency at the given rates.
// Transfers whose source account is unknown are ignored.
func Balance(acc domain.Account, snap Snapshot, rates currency.Rates) decimal.Decimal {
	idx := snap.lookup()
	bal := acc.InitialBalance

	for _, t := range snap.Transactions {
		if t.AccountID == acc.ID {
			switch t.Type {
			case domain.Expense, domain.Transfer:
				bal = bal.Sub(t.Amount)
			case domain.Income:
				bal = bal.Add(t.Amount)
			}
		}
		if t.Type != domain.Transfer || t.ToAccountID != acc.ID {
			continue
		}
		var src domain.Account
		if t.AccountID == acc.ID {
			src = acc
		} else if i, ok := idx[t.AccountID]; ok {
			src = snap.Accounts[i]
		} else {
			continue
		}
		bal = bal.Add(credit(t.Amount, src.Currency, acc.Currency, rates))
	}
	return bal
}

// Balances computes every account's balance in a single pass over the
// transactions, in snapshot order.
func Balances(snap Snapshot, rates currency.Rates) []AccountBalance {
	idx := snap.lookup()
	bals := make([]decimal.Decimal, len(snap.Accounts))
	for i, a := range snap.Accounts {
		bals[i] = a.InitialBalance
	}

	for _, t := range snap.Transactions {
		si, ok := idx[t.AccountID]
		if !ok {
			continue
		}
		switch t.Type {
		case domain.Expense:
			bals[si] = bals[si].Sub(t.Amount)
		case domain.Income:
			bals[si] = bals[si].Add(t.Amount)
		case domain.Transfer:
			bals[si] = bals[si].Sub(t.Amount)
			if di, ok := idx[t.ToAccountID]; ok {
				src, dst := snap.Accounts[si], snap.Accounts[di]
				bals[di] = bals[di].Add(credit(t.Amount, src.Currency, dst.Currency, rates))
			}
		}
	}

	out := make([]AccountBalance, len(snap.Accounts))
	for i, a := range snap.Accounts {
		out[i] = AccountBalance{
			Account:       a,
			Balance:       bals[i],
			BalanceInBase: currency.ToBase(bals[i], a.Currency, rates),
		}
	}
	return out
}

// PortfolioTotal is the sum of every account balance converted to base currency.
func PortfolioTotal(snap Snapshot, rates currency.Rates) decimal.Decimal {
	return sumInBase(Balances(snap, rates))
}

// MonthlyFlow sums income and expense of the calendar month containing now,
// converted to base currency with each transaction's source account currency.
// Transfers and transactions from unknown accounts are excluded.
func MonthlyFlow(snap Snapshot, rates currency.Rates, now time.Time) Flow {
	idx := snap.lookup()
	flow := Flow{Income: decimal.Zero, Expense: decimal.Zero}

	for _, t := range snap.Transactions {
		if t.Type == domain.Transfer {
			continue
		}
		if t.Date.Year != now.Year() || t.Date.Month != now.Month() {
			continue
		}
		i, ok := idx[t.AccountID]
		if !ok {
			continue
		}
		amount := currency.ToBase(t.Amount, snap.Accounts[i].Currency, rates)
		switch t.Type {
		case domain.Income:
			flow.Income = flow.Income.Add(amount)
		case domain.Expense:
			flow.Expense = flow.Expense.Add(amount)
		}
	}
	return flow
}

func credit(amount decimal.Decimal, from, to domain.Currency, rates currency.Rates) decimal.Decimal {
	if from == to {
		return amount
	}
	return currency.FromBase(currency.ToBase(amount, from, rates), to, rates)
}

func sumInBase(bals []AccountBalance) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bals {
		total = total.Add(b.BalanceInBase)
	}
	return total
}
