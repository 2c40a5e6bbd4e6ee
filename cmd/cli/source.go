package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/gastosmart/internal/config"
	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/domain"
	infraBQ "github.com/dvloznov/gastosmart/internal/infra/bigquery"
	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/shopspring/decimal"
)

// snapshotFile is the JSON layout read by -file.
type snapshotFile struct {
	Accounts     []domain.Account     `json:"accounts"`
	Transactions []domain.Transaction `json:"transactions"`
}

// ledgerSource selects where a command reads the ledger from: a snapshot
// file, or the configured BigQuery store for one user.
type ledgerSource struct {
	file  string
	user  string
	rates string
}

func (s *ledgerSource) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.file, "file", "", "read accounts and transactions from this JSON `snapshot` instead of the store")
	f.StringVar(&s.user, "user", "", "user whose ledger is read from the store")
	f.StringVar(&s.rates, "rates", "", "override configured rates, e.g. USD=41.5,UI=6.2")
}

// session is what a command works on once the source is loaded.
type session struct {
	ctx   context.Context
	cfg   config.Config
	snap  ledger.Snapshot
	rates currency.Rates
}

// load reads the configuration, the rates and the ledger. The returned
// context carries a stderr logger.
func (s *ledgerSource) load(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.NewConsole(os.Stderr, cfg.Log.Level))

	rates, err := loadRates(cfg.Rates, s.rates)
	if err != nil {
		return nil, err
	}

	var snap ledger.Snapshot
	if s.file != "" {
		snap, err = readSnapshot(s.file)
	} else {
		snap, err = fetchSnapshot(ctx, cfg.Store, s.user)
	}
	if err != nil {
		return nil, err
	}
	return &session{ctx: ctx, cfg: cfg, snap: snap, rates: rates.Rates()}, nil
}

func readSnapshot(path string) (ledger.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("readSnapshot: %w", err)
	}
	defer f.Close()

	var file snapshotFile
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("readSnapshot: decoding %s: %w", path, err)
	}
	return ledger.NewSnapshot(file.Accounts, file.Transactions), nil
}

func fetchSnapshot(ctx context.Context, cfg config.StoreConfig, userID string) (ledger.Snapshot, error) {
	if cfg.Backend != config.BackendBigQuery {
		return ledger.Snapshot{}, fmt.Errorf("store.backend is %q: use -file or configure the bigquery store", cfg.Backend)
	}
	if userID == "" {
		return ledger.Snapshot{}, errors.New("-user is required when reading from the store")
	}

	bq, err := infraBQ.NewStore(ctx, infraBQ.Config{
		ProjectID:    cfg.ProjectID,
		DatasetID:    cfg.DatasetID,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer bq.Close()

	accounts, transactions, err := store.Fetch(ctx, bq, userID)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return ledger.NewSnapshot(accounts, transactions), nil
}

// loadRates seeds a rate table from cfg and applies the -rates overrides.
func loadRates(cfg config.RatesConfig, overrides string) (*currency.Table, error) {
	initial, err := cfg.Values()
	if err != nil {
		return nil, err
	}
	extra, err := parseRates(overrides)
	if err != nil {
		return nil, err
	}
	for c, v := range extra {
		initial[c] = v
	}
	return currency.NewTable(initial)
}

// parseRates reads "USD=41.5,UI=6.2".
func parseRates(s string) (map[domain.Currency]decimal.Decimal, error) {
	out := make(map[domain.Currency]decimal.Decimal)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		code, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate %q, want CODE=VALUE", pair)
		}
		c, err := domain.ParseCurrency(code)
		if err != nil {
			return nil, err
		}
		if c == domain.BaseCurrency {
			return nil, fmt.Errorf("the %s rate is fixed at 1", c)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", c, err)
		}
		out[c] = v
	}
	return out, nil
}
