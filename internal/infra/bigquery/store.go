// Package bigquery implements store.Store on Google BigQuery. Writes are DML
// statements; subscriptions poll the tables and push a snapshot whenever the
// result changes.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// Config locates the dataset.
type Config struct {
	ProjectID    string
	DatasetID    string
	PollInterval time.Duration
}

// Store is the BigQuery implementation of store.Store. It holds one shared
// client for all operations.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	interval  time.Duration

	mu     sync.Mutex
	kicks  map[int]subscriber
	nextID int
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.BatchDeleter = (*Store)(nil)
)

// NewStore creates a Store with its own BigQuery client.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, cfg), nil
}

// NewStoreWithClient creates a Store around an existing client.
func NewStoreWithClient(client *bigquery.Client, cfg Config) *Store {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Store{
		client:    client,
		projectID: cfg.ProjectID,
		datasetID: cfg.DatasetID,
		interval:  interval,
		kicks:     make(map[int]subscriber),
	}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.projectID, s.datasetID, name)
}

// CreateAccount implements store.AccountStore.
func (s *Store) CreateAccount(ctx context.Context, userID string, acc domain.Account) (string, error) {
	acc.ID = uuid.NewString()
	row := newAccountRow(userID, acc, time.Now())

	_, err := s.runDML(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			account_id, user_id, account_name, account_type,
			currency, initial_balance, icon, created_ts
		)
		VALUES (
			@account_id, @user_id, @account_name, @account_type,
			@currency, @initial_balance, @icon, @created_ts
		)
	`, s.table(accountsTable)), []bigquery.QueryParameter{
		{Name: "account_id", Value: row.AccountID},
		{Name: "user_id", Value: row.UserID},
		{Name: "account_name", Value: row.AccountName},
		{Name: "account_type", Value: row.AccountType},
		{Name: "currency", Value: row.Currency},
		{Name: "initial_balance", Value: row.InitialBalance},
		{Name: "icon", Value: row.Icon},
		{Name: "created_ts", Value: row.CreatedTS},
	})
	if err != nil {
		return "", fmt.Errorf("CreateAccount: %w", err)
	}

	s.kick(userID)
	return acc.ID, nil
}

// UpdateAccount implements store.AccountStore.
func (s *Store) UpdateAccount(ctx context.Context, userID, id string, patch domain.AccountPatch) error {
	set, params := accountUpdate(patch)
	if len(set) == 0 {
		return nil
	}
	if err := s.update(ctx, accountsTable, "account_id", userID, id, set, params); err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	s.kick(userID)
	return nil
}

// DeleteAccount implements store.AccountStore.
func (s *Store) DeleteAccount(ctx context.Context, userID, id string) error {
	if err := s.deleteOne(ctx, accountsTable, "account_id", userID, id); err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	s.kick(userID)
	return nil
}

// CreateTransaction implements store.TransactionStore.
func (s *Store) CreateTransaction(ctx context.Context, userID string, t domain.Transaction) (string, error) {
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	row := newTransactionRow(userID, t)

	_, err := s.runDML(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			transaction_id, user_id, account_id, to_account_id,
			transaction_date, amount, transaction_type,
			category_name, description, merchant, payment_method,
			created_ts
		)
		VALUES (
			@transaction_id, @user_id, @account_id, @to_account_id,
			@transaction_date, @amount, @transaction_type,
			@category_name, @description, @merchant, @payment_method,
			@created_ts
		)
	`, s.table(transactionsTable)), []bigquery.QueryParameter{
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "user_id", Value: row.UserID},
		{Name: "account_id", Value: row.AccountID},
		{Name: "to_account_id", Value: row.ToAccountID},
		{Name: "transaction_date", Value: row.TransactionDate},
		{Name: "amount", Value: row.Amount},
		{Name: "transaction_type", Value: row.TransactionType},
		{Name: "category_name", Value: row.CategoryName},
		{Name: "description", Value: row.Description},
		{Name: "merchant", Value: row.Merchant},
		{Name: "payment_method", Value: row.PaymentMethod},
		{Name: "created_ts", Value: row.CreatedTS},
	})
	if err != nil {
		return "", fmt.Errorf("CreateTransaction: %w", err)
	}

	s.kick(userID)
	return t.ID, nil
}

// UpdateTransaction implements store.TransactionStore.
func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, patch domain.TransactionPatch) error {
	set, params := transactionUpdate(patch)
	if len(set) == 0 {
		return nil
	}
	if err := s.update(ctx, transactionsTable, "transaction_id", userID, id, set, params); err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	s.kick(userID)
	return nil
}

// DeleteTransaction implements store.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	if err := s.deleteOne(ctx, transactionsTable, "transaction_id", userID, id); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	s.kick(userID)
	return nil
}

// DeleteTransactions implements store.BatchDeleter with a single DML
// statement, which BigQuery applies atomically.
func (s *Store) DeleteTransactions(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.runDML(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id
		  AND transaction_id IN UNNEST(@ids)
	`, s.table(transactionsTable)), []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "ids", Value: ids},
	})
	if err != nil {
		return fmt.Errorf("DeleteTransactions: %w", err)
	}
	s.kick(userID)
	return nil
}

// ListAccounts returns the user's accounts ordered by name.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			account_id, user_id, account_name, account_type,
			currency, initial_balance, icon, created_ts, updated_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY account_name, account_id
	`, s.table(accountsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: reading query: %w", classify(err))
	}

	accounts := []domain.Account{}
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: iterating: %w", classify(err))
		}
		acc, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// ListTransactions returns the user's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id, user_id, account_id, to_account_id,
			transaction_date, amount, transaction_type,
			category_name, description, merchant, payment_method,
			created_ts, updated_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY transaction_date DESC, created_ts DESC, transaction_id
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: reading query: %w", classify(err))
	}

	txs := []domain.Transaction{}
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iterating: %w", classify(err))
		}
		t, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func (s *Store) update(ctx context.Context, table, idColumn, userID, id string, set []string, params []bigquery.QueryParameter) error {
	params = append(params,
		bigquery.QueryParameter{Name: "user_id", Value: userID},
		bigquery.QueryParameter{Name: "id", Value: id},
		bigquery.QueryParameter{Name: "updated_ts", Value: time.Now()},
	)
	affected, err := s.runDML(ctx, fmt.Sprintf(`
		UPDATE %s
		SET %s, updated_ts = @updated_ts
		WHERE user_id = @user_id AND %s = @id
	`, s.table(table), joinSet(set), idColumn), params)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) deleteOne(ctx context.Context, table, idColumn, userID, id string) error {
	affected, err := s.runDML(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND %s = @id
	`, s.table(table), idColumn), []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "id", Value: id},
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", table, id, store.ErrNotFound)
	}
	return nil
}

// runDML runs a statement, waits for it and returns the affected row count.
func (s *Store) runDML(ctx context.Context, sql string, params []bigquery.QueryParameter) (int64, error) {
	log := logger.FromContext(ctx)

	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", classify(err))
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", classify(err))
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", classify(err))
	}

	var affected int64
	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			affected = qs.NumDMLAffectedRows
		}
	}
	log.Debug().Str("job_id", job.ID()).Int64("affected_rows", affected).Msg("DML statement finished")
	return affected, nil
}

// classify maps BigQuery API errors onto the store error kinds.
func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch gerr.Code {
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", store.ErrPermissionDenied, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}
