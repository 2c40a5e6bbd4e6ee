package currency

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrInvalidRate is returned when an edit would store a non-positive rate or
// a rate for the base currency.
var ErrInvalidRate = errors.New("invalid exchange rate")

// DefaultRates are the rates a fresh table starts with.
func DefaultRates() map[domain.Currency]decimal.Decimal {
	return map[domain.Currency]decimal.Decimal{
		domain.USD: decimal.RequireFromString("42.50"),
		domain.UI:  decimal.RequireFromString("6.16"),
	}
}

// Table is the process-wide exchange-rate table. It is shared by pointer
// between every consumer and is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	rates   map[domain.Currency]decimal.Decimal
	version uint64
}

// NewTable creates a table seeded with initial. Every non-base currency
// must have a positive rate.
func NewTable(initial map[domain.Currency]decimal.Decimal) (*Table, error) {
	t := &Table{rates: make(map[domain.Currency]decimal.Decimal)}
	for _, c := range domain.Currencies {
		if c == domain.BaseCurrency {
			continue
		}
		v, ok := initial[c]
		if !ok {
			return nil, fmt.Errorf("NewTable: %w: missing rate for %s", ErrInvalidRate, c)
		}
		if err := validate(c, v); err != nil {
			return nil, fmt.Errorf("NewTable: %w", err)
		}
		t.rates[c] = v
	}
	return t, nil
}

// Set replaces the rate of c. Non-positive rates and the base currency are
// rejected with ErrInvalidRate and leave the table unchanged.
func (t *Table) Set(c domain.Currency, rate decimal.Decimal) error {
	if err := validate(c, rate); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rates[c] = rate
	t.version++
	return nil
}

// SetAll applies several edits atomically: either every rate is accepted or
// none is.
func (t *Table) SetAll(rates map[domain.Currency]decimal.Decimal) error {
	for c, v := range rates {
		if err := validate(c, v); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for c, v := range rates {
		t.rates[c] = v
	}
	t.version++
	return nil
}

// Rates returns an immutable snapshot for one computation.
func (t *Table) Rates() Rates {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return NewRates(t.rates)
}

// Version increments on every accepted edit.
func (t *Table) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

func validate(c domain.Currency, rate decimal.Decimal) error {
	if !c.Valid() {
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidRate, c)
	}
	if c == domain.BaseCurrency {
		return fmt.Errorf("%w: %s is the base currency", ErrInvalidRate, c)
	}
	if !rate.IsPositive() {
		return fmt.Errorf("%w: %s rate must be positive, got %s", ErrInvalidRate, c, rate)
	}
	return nil
}
