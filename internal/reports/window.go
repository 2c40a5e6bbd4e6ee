// Package reports builds read-only profit-and-loss projections over ledger
// data: time windows, category breakdowns and monthly cash flow.
package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastosmart/internal/domain"
)

// Window names a reporting period relative to now.
type Window string

const (
	CurrentMonth Window = "current-month"
	LastMonth    Window = "last-month"
	LastThree    Window = "last-3-months"
	AllTime      Window = "all"
)

// Windows lists every supported window.
var Windows = []Window{CurrentMonth, LastMonth, LastThree, AllTime}

// ErrUnknownWindow is returned by ParseWindow for unsupported names.
var ErrUnknownWindow = errors.New("unknown report window")

// ParseWindow resolves a window name. The empty string means CurrentMonth.
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return CurrentMonth, nil
	}
	for _, w := range Windows {
		if string(w) == s {
			return w, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
}

// Contains reports whether date falls inside w relative to now.
//
// LastThree spans from the first day of the month two months before now
// through today, inclusive.
func (w Window) Contains(date civil.Date, now time.Time) bool {
	switch w {
	case CurrentMonth:
		return sameMonth(date, monthStart(now, 0))
	case LastMonth:
		return sameMonth(date, monthStart(now, -1))
	case LastThree:
		today := civil.DateOf(now)
		return !date.Before(monthStart(now, -2)) && !date.After(today)
	case AllTime:
		return true
	}
	return false
}

// FilterWindow keeps the non-transfer transactions dated inside w.
func FilterWindow(txs []domain.Transaction, w Window, now time.Time) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Type == domain.Transfer {
			continue
		}
		if w.Contains(t.Date, now) {
			out = append(out, t)
		}
	}
	return out
}

// monthStart returns the first day of the month offset months away from now.
func monthStart(now time.Time, offset int) civil.Date {
	return civil.DateOf(time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC))
}

func sameMonth(a, b civil.Date) bool {
	return a.Year == b.Year && a.Month == b.Month
}
