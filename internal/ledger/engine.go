package ledger

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// Dashboard is everything the overview screen shows.
type Dashboard struct {
	Total    decimal.Decimal  `json:"total"`
	Income   decimal.Decimal  `json:"income"`
	Expense  decimal.Decimal  `json:"expense"`
	Accounts []AccountBalance `json:"accounts"`
	// Unresolved counts transactions whose source account is unknown.
	Unresolved int `json:"unresolved"`
}

// Engine memoizes dashboards on a fingerprint of their inputs. A zero TTL
// disables memoization; the results are identical either way.
type Engine struct {
	memo *cache.Cache
}

// NewEngine creates an engine whose memoized results expire after ttl.
func NewEngine(ttl time.Duration) *Engine {
	if ttl <= 0 {
		return &Engine{}
	}
	return &Engine{memo: cache.New(ttl, 2*ttl)}
}

// Dashboard returns balances, portfolio total and monthly flow for now.
func (e *Engine) Dashboard(snap Snapshot, rates currency.Rates, now time.Time) Dashboard {
	var key string
	if e != nil && e.memo != nil {
		key = strconv.FormatUint(Fingerprint(snap, rates, now), 16)
		if v, ok := e.memo.Get(key); ok {
			return v.(Dashboard).clone()
		}
	}

	bals := Balances(snap, rates)
	flow := MonthlyFlow(snap, rates, now)
	dash := Dashboard{
		Total:      sumInBase(bals),
		Income:     flow.Income,
		Expense:    flow.Expense,
		Accounts:   bals,
		Unresolved: len(snap.Orphans()),
	}

	if key != "" {
		e.memo.SetDefault(key, dash.clone())
	}
	return dash
}

// Purge drops every memoized result.
func (e *Engine) Purge() {
	if e != nil && e.memo != nil {
		e.memo.Flush()
	}
}

func (d Dashboard) clone() Dashboard {
	d.Accounts = append([]AccountBalance(nil), d.Accounts...)
	return d
}

// Fingerprint hashes every input a dashboard depends on: the snapshot, the
// rates and the year and month of now.
func Fingerprint(snap Snapshot, rates currency.Rates, now time.Time) uint64 {
	h := xxhash.New()
	write := func(fields ...string) {
		for _, f := range fields {
			_, _ = h.WriteString(f)
			_, _ = h.Write([]byte{0})
		}
	}

	write("month", strconv.Itoa(now.Year()), strconv.Itoa(int(now.Month())))
	for _, c := range domain.Currencies {
		write("rate", string(c), rates.Rate(c).String())
	}
	for _, a := range snap.Accounts {
		write("acc", a.ID, a.Name, string(a.Type), string(a.Currency), a.InitialBalance.String(), a.Icon)
	}
	for _, t := range snap.Transactions {
		write("tx", t.ID, t.Date.String(), t.Amount.String(), string(t.Type), t.AccountID, t.ToAccountID)
	}
	return h.Sum64()
}
