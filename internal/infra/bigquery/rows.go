package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	accountsTable     = "accounts"
	transactionsTable = "transactions"

	// numericScale is the number of fractional digits of a BigQuery NUMERIC.
	numericScale = 9
)

// AccountRow is one row of the accounts table.
type AccountRow struct {
	AccountID string `bigquery:"account_id"` // REQUIRED
	UserID    string `bigquery:"user_id"`    // REQUIRED

	AccountName    string   `bigquery:"account_name"`    // REQUIRED
	AccountType    string   `bigquery:"account_type"`    // REQUIRED
	Currency       string   `bigquery:"currency"`        // REQUIRED
	InitialBalance *big.Rat `bigquery:"initial_balance"` // REQUIRED NUMERIC

	Icon bigquery.NullString `bigquery:"icon"` // NULLABLE

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	AccountID   string              `bigquery:"account_id"`    // REQUIRED
	ToAccountID bigquery.NullString `bigquery:"to_account_id"` // NULLABLE, transfers only

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	TransactionType string     `bigquery:"transaction_type"` // REQUIRED

	CategoryName  string              `bigquery:"category_name"`  // REQUIRED
	Description   string              `bigquery:"description"`    // REQUIRED
	Merchant      bigquery.NullString `bigquery:"merchant"`       // NULLABLE
	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE, expenses only

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

func toRat(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func fromRat(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.Zero, fmt.Errorf("fromRat: %w", err)
	}
	return d, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func newAccountRow(userID string, acc domain.Account, now time.Time) *AccountRow {
	return &AccountRow{
		AccountID:      acc.ID,
		UserID:         userID,
		AccountName:    acc.Name,
		AccountType:    string(acc.Type),
		Currency:       string(acc.Currency),
		InitialBalance: toRat(acc.InitialBalance),
		Icon:           nullString(acc.Icon),
		CreatedTS:      now,
	}
}

func (r *AccountRow) toDomain() (domain.Account, error) {
	bal, err := fromRat(r.InitialBalance)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: initial_balance: %w", r.AccountID, err)
	}
	return domain.Account{
		ID:             r.AccountID,
		Name:           r.AccountName,
		Type:           domain.AccountType(r.AccountType),
		Currency:       domain.Currency(r.Currency),
		InitialBalance: bal,
		Icon:           r.Icon.StringVal,
	}, nil
}

func newTransactionRow(userID string, t domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:   t.ID,
		UserID:          userID,
		AccountID:       t.AccountID,
		ToAccountID:     nullString(t.ToAccountID),
		TransactionDate: t.Date,
		Amount:          toRat(t.Amount),
		TransactionType: string(t.Type),
		CategoryName:    t.Category,
		Description:     t.Description,
		Merchant:        nullString(t.Merchant),
		PaymentMethod:   nullString(string(t.PaymentMethod)),
		CreatedTS:       t.CreatedAt,
	}
}

func (r *TransactionRow) toDomain() (domain.Transaction, error) {
	amount, err := fromRat(r.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: amount: %w", r.TransactionID, err)
	}
	return domain.Transaction{
		ID:            r.TransactionID,
		Date:          r.TransactionDate,
		Amount:        amount,
		Type:          domain.TransactionType(r.TransactionType),
		Category:      r.CategoryName,
		Description:   r.Description,
		Merchant:      r.Merchant.StringVal,
		AccountID:     r.AccountID,
		ToAccountID:   r.ToAccountID.StringVal,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod.StringVal),
		CreatedAt:     r.CreatedTS,
	}, nil
}
