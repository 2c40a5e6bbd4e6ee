package currency

import (
	"github.com/Rhymond/go-money"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/shopspring/decimal"
)

// Format renders amount in c with the currency's grapheme and fraction digits.
// Currencies unknown to go-money (the Unidad Indexada) fall back to
// "UI 1234.5678".
func Format(amount decimal.Decimal, c domain.Currency) string {
	if money.GetCurrency(string(c)) == nil {
		return string(c) + " " + amount.StringFixed(4)
	}
	cur := *money.New(0, string(c)).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
