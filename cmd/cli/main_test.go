package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/gastosmart/internal/config"
	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/dvloznov/gastosmart/internal/reports"
	"github.com/shopspring/decimal"
)

func TestParseRates(t *testing.T) {
	tests := []struct {
		in      string
		want    map[domain.Currency]string
		wantErr bool
	}{
		{in: "", want: map[domain.Currency]string{}},
		{in: "usd=41.5, UI=6.2", want: map[domain.Currency]string{domain.USD: "41.5", domain.UI: "6.2"}},
		{in: "USD", wantErr: true},
		{in: "EUR=1", wantErr: true},
		{in: "UYU=2", wantErr: true},
		{in: "USD=abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRates(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRates(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseRates(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for c, v := range tt.want {
				if !got[c].Equal(decimal.RequireFromString(v)) {
					t.Errorf("rate %s = %s, want %s", c, got[c], v)
				}
			}
		})
	}
}

func TestLoadRates(t *testing.T) {
	cfg := config.RatesConfig{USD: "40", UI: "5"}

	table, err := loadRates(cfg, "UI=6")
	if err != nil {
		t.Fatalf("loadRates failed: %v", err)
	}
	if got := table.Rates().Rate(domain.UI); !got.Equal(decimal.NewFromInt(6)) {
		t.Errorf("UI rate = %s, want 6", got)
	}

	if _, err := loadRates(cfg, "USD=0"); err == nil {
		t.Error("a zero rate should be rejected")
	}
}

func TestConvert(t *testing.T) {
	table, err := loadRates(config.RatesConfig{USD: "40", UI: "5"}, "")
	if err != nil {
		t.Fatalf("loadRates failed: %v", err)
	}

	got, err := convert("10", "usd", "UI", table.Rates())
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if !strings.HasSuffix(got, "= UI 80.0000") || !strings.Contains(got, "10.00") {
		t.Errorf("convert = %q", got)
	}

	for _, args := range [][3]string{{"ten", "USD", "UI"}, {"10", "EUR", "UI"}, {"10", "USD", "BTC"}} {
		if _, err := convert(args[0], args[1], args[2], table.Rates()); err == nil {
			t.Errorf("convert%v should fail", args)
		}
	}
}

func TestReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	data := `{
  "accounts": [
    {"id": "a1", "name": "Efectivo", "type": "cash", "currency": "UYU", "initialBalance": "1000"}
  ],
  "transactions": [
    {"id": "t1", "date": "2024-03-09", "amount": "250", "type": "expense", "category": "Comida", "description": "Feria", "accountId": "a1", "createdAt": "2024-03-09T10:00:00Z"}
  ]
}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("writing snapshot: %v", err)
	}

	snap, err := readSnapshot(path)
	if err != nil {
		t.Fatalf("readSnapshot failed: %v", err)
	}
	if len(snap.Accounts) != 1 || len(snap.Transactions) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	acc, ok := snap.Account("a1")
	if !ok {
		t.Fatal("account a1 not indexed")
	}
	if got := ledger.Balance(acc, snap, currency.NewRates(nil)); !got.Equal(decimal.NewFromInt(750)) {
		t.Errorf("balance = %s, want 750", got)
	}

	if _, err := readSnapshot(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestWriteDashboard(t *testing.T) {
	d := ledger.Dashboard{
		Total:   decimal.NewFromInt(750),
		Income:  decimal.Zero,
		Expense: decimal.NewFromInt(250),
		Accounts: []ledger.AccountBalance{{
			Account:       domain.Account{ID: "a1", Name: "Efectivo", Type: domain.AccountCash, Currency: domain.UYU},
			Balance:       decimal.NewFromInt(750),
			BalanceInBase: decimal.NewFromInt(750),
		}},
		Unresolved: 2,
	}

	var buf bytes.Buffer
	if err := writeDashboard(&buf, d); err != nil {
		t.Fatalf("writeDashboard failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Efectivo", "cash", "750.00", "Total", "250.00", "2 transactions"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReport(t *testing.T) {
	r := reports.Report{
		Window:            reports.LastMonth,
		Income:            decimal.NewFromInt(500),
		Expense:           decimal.NewFromInt(200),
		Net:               decimal.NewFromInt(300),
		SavingsRate:       decimal.NewFromInt(60),
		ExpenseByCategory: []reports.CategoryTotal{{Category: "Comida", Total: decimal.NewFromInt(200)}},
		CashFlow:          []reports.MonthFlow{{Month: time.Now().Format("2006-01"), Income: decimal.NewFromInt(500), Expense: decimal.NewFromInt(200)}},
	}

	var buf bytes.Buffer
	if err := writeReport(&buf, r); err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"last-month", "60.00%", "Comida", "300.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "excluded") {
		t.Errorf("nothing was excluded:\n%s", out)
	}
}
