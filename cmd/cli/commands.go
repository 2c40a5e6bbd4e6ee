package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/gastosmart/internal/config"
	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/dvloznov/gastosmart/internal/notionsync"
	"github.com/dvloznov/gastosmart/internal/reports"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type balancesCmd struct {
	source ledgerSource
	json   bool
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "show every account balance and the portfolio total" }
func (*balancesCmd) Usage() string {
	return `cli balances [-file <snapshot.json> | -user <id>] [-rates USD=..,UI=..] [-json]

  Computes each account's balance in its own currency and in pesos, the
  portfolio total and the current month's income and expense.
`
}

func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	c.source.SetFlags(f)
	f.BoolVar(&c.json, "json", false, "print the dashboard as JSON")
}

func (c *balancesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sess, err := c.source.load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	dash := ledger.NewEngine(0).Dashboard(sess.snap, sess.rates, time.Now())
	if c.json {
		err = writeJSON(os.Stdout, dash)
	} else {
		err = writeDashboard(os.Stdout, dash)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type reportCmd struct {
	source ledgerSource
	window string
	json   bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "show income, expense and cash flow for a period" }
func (*reportCmd) Usage() string {
	return `cli report [-window current-month|last-month|last-3-months|all] [-file <snapshot.json> | -user <id>] [-json]

  Builds the profit-and-loss report of the window in pesos: totals, the
  savings rate, expense and income by category and the monthly cash flow.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	c.source.SetFlags(f)
	f.StringVar(&c.window, "window", string(reports.CurrentMonth), "reporting window")
	f.BoolVar(&c.json, "json", false, "print the report as JSON")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w, err := reports.ParseWindow(c.window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing window: %v\n", err)
		return subcommands.ExitUsageError
	}

	sess, err := c.source.load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	report := reports.Build(sess.snap, sess.rates, w, time.Now())
	if c.json {
		err = writeJSON(os.Stdout, report)
	} else {
		err = writeReport(os.Stdout, report)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type convertCmd struct {
	rates string
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert an amount between currencies" }
func (*convertCmd) Usage() string {
	return `cli convert [-rates USD=..,UI=..] <amount> <from> <to>

  Converts through pesos at the configured rates, e.g. "cli convert 100 USD UI".
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.rates, "rates", "", "override configured rates, e.g. USD=41.5,UI=6.2")
}

func (c *convertCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	table, err := loadRates(cfg.Rates, c.rates)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	out, err := convert(f.Arg(0), f.Arg(1), f.Arg(2), table.Rates())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	fmt.Println(out)
	return subcommands.ExitSuccess
}

// convert parses its arguments and renders the converted amount.
func convert(amount, from, to string, rates currency.Rates) (string, error) {
	v, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	src, err := domain.ParseCurrency(from)
	if err != nil {
		return "", err
	}
	dst, err := domain.ParseCurrency(to)
	if err != nil {
		return "", err
	}
	converted := currency.Convert(v, src, dst, rates)
	return fmt.Sprintf("%s = %s", currency.Format(v, src), currency.Format(converted, dst)), nil
}

type syncNotionCmd struct {
	source   ledgerSource
	database string
	dryRun   bool
}

func (*syncNotionCmd) Name() string     { return "sync-notion" }
func (*syncNotionCmd) Synopsis() string { return "export account balances to a Notion database" }
func (*syncNotionCmd) Usage() string {
	return `cli sync-notion [-file <snapshot.json> | -user <id>] [-database <id>] [-dry-run]

  Writes one page per account with its current balance. Pages for accounts
  that no longer exist, and duplicate pages, are archived.
  The token is read from GASTOSMART_NOTION_TOKEN.
`
}

func (c *syncNotionCmd) SetFlags(f *flag.FlagSet) {
	c.source.SetFlags(f)
	f.StringVar(&c.database, "database", "", "Notion database ID (defaults to notion.database_id)")
	f.BoolVar(&c.dryRun, "dry-run", false, "report what would change without writing to Notion")
}

func (c *syncNotionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sess, err := c.source.load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	dbID := c.database
	if dbID == "" {
		dbID = sess.cfg.Notion.DatabaseID
	}
	if sess.cfg.Notion.Token == "" || dbID == "" {
		fmt.Fprintln(os.Stderr, errors.New("a Notion token and database ID are required"))
		return subcommands.ExitUsageError
	}

	client := notionsync.NewNotionClient(sess.cfg.Notion.Token)
	result, err := notionsync.SyncBalances(sess.ctx, ledger.Balances(sess.snap, sess.rates), client, dbID, c.dryRun)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Printf("created %d, updated %d, archived %d, failed %d\n", result.Created, result.Updated, result.Archived, result.Failed)
	if result.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDashboard(w io.Writer, d ledger.Dashboard) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Account\tType\tBalance\tIn UYU\t")
	for _, b := range d.Accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			b.Account.Name, b.Account.Type,
			currency.Format(b.Balance, b.Account.Currency),
			currency.Format(b.BalanceInBase, domain.BaseCurrency))
	}
	fmt.Fprintf(tw, "Total\t\t\t%s\t\n", currency.Format(d.Total, domain.BaseCurrency))
	if err := tw.Flush(); err != nil {
		return err
	}

	base := domain.BaseCurrency
	fmt.Fprintf(w, "\nThis month: income %s, expense %s\n", currency.Format(d.Income, base), currency.Format(d.Expense, base))
	if d.Unresolved > 0 {
		fmt.Fprintf(w, "%d transactions reference unknown accounts and were ignored\n", d.Unresolved)
	}
	return nil
}

func writeReport(w io.Writer, r reports.Report) error {
	base := domain.BaseCurrency
	fmt.Fprintf(w, "Report: %s\n", r.Window)
	fmt.Fprintf(w, "Income:  %s\n", currency.Format(r.Income, base))
	fmt.Fprintf(w, "Expense: %s\n", currency.Format(r.Expense, base))
	fmt.Fprintf(w, "Net:     %s (savings rate %s%%)\n", currency.Format(r.Net, base), r.SavingsRate.StringFixed(2))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(r.ExpenseByCategory) > 0 {
		fmt.Fprintln(tw, "\nExpense by category\t")
		for _, c := range r.ExpenseByCategory {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Category, currency.Format(c.Total, base))
		}
	}
	if len(r.CashFlow) > 0 {
		fmt.Fprintln(tw, "\nMonth\tIncome\tExpense")
		for _, m := range r.CashFlow {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.Month, currency.Format(m.Income, base), currency.Format(m.Expense, base))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Excluded > 0 {
		fmt.Fprintf(w, "\n%d transactions reference unknown accounts and were excluded\n", r.Excluded)
	}
	return nil
}
