// Package currency converts amounts between the supported currencies through
// the base currency, using a single user-editable rate table.
package currency

import (
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/shopspring/decimal"
)

// Rates is an immutable view of the rate table: for each non-base currency,
// how many units of base currency one unit is worth.
type Rates struct {
	byCurrency map[domain.Currency]decimal.Decimal
}

// NewRates builds a Rates value. The base currency, if present, is ignored.
// Callers outside this package should obtain Rates from a Table, which
// guarantees every rate is positive.
func NewRates(rates map[domain.Currency]decimal.Decimal) Rates {
	r := Rates{byCurrency: make(map[domain.Currency]decimal.Decimal, len(rates))}
	for c, v := range rates {
		if c == domain.BaseCurrency {
			continue
		}
		r.byCurrency[c] = v
	}
	return r
}

// Rate returns the rate-to-base of c. The base currency is always 1.
// A currency with no rate yields zero.
func (r Rates) Rate(c domain.Currency) decimal.Decimal {
	if c == domain.BaseCurrency {
		return decimal.NewFromInt(1)
	}
	return r.byCurrency[c]
}

// Map returns a copy of the non-base rates.
func (r Rates) Map() map[domain.Currency]decimal.Decimal {
	out := make(map[domain.Currency]decimal.Decimal, len(r.byCurrency))
	for c, v := range r.byCurrency {
		out[c] = v
	}
	return out
}

// ToBase converts amount denominated in c into the base currency.
func ToBase(amount decimal.Decimal, c domain.Currency, rates Rates) decimal.Decimal {
	if c == domain.BaseCurrency {
		return amount
	}
	return amount.Mul(rates.Rate(c))
}

// FromBase converts an amount in base currency into c.
//
// A zero rate panics inside decimal division; Table never stores one.
func FromBase(amountInBase decimal.Decimal, c domain.Currency, rates Rates) decimal.Decimal {
	if c == domain.BaseCurrency {
		return amountInBase
	}
	return amountInBase.Div(rates.Rate(c))
}

// Convert converts amount from one currency to another through the base.
func Convert(amount decimal.Decimal, from, to domain.Currency, rates Rates) decimal.Decimal {
	return FromBase(ToBase(amount, from, rates), to, rates)
}
