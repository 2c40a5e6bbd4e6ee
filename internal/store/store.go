// Package store defines the per-user document store the ledger is fed from:
// create, update and delete of accounts and transactions, plus live
// subscriptions that push full snapshots of a user's collection.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/dvloznov/gastosmart/internal/domain"
)

var (
	// ErrNotFound is returned when the record does not exist for the user.
	ErrNotFound = errors.New("record not found")
	// ErrPermissionDenied is returned when the caller may not access the record.
	ErrPermissionDenied = errors.New("permission denied")
)

// IsPermissionDenied reports whether err is or wraps ErrPermissionDenied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// AccountStore persists a user's accounts.
type AccountStore interface {
	// CreateAccount stores acc and returns its new ID. acc.ID is ignored.
	CreateAccount(ctx context.Context, userID string, acc domain.Account) (string, error)

	// UpdateAccount applies patch to the account.
	UpdateAccount(ctx context.Context, userID, id string, patch domain.AccountPatch) error

	// DeleteAccount removes the account only; it does not cascade.
	DeleteAccount(ctx context.Context, userID, id string) error

	// SubscribeAccounts delivers the full account list now and after every change.
	SubscribeAccounts(ctx context.Context, userID string, onSnapshot func([]domain.Account), onError func(error)) (Unsubscribe, error)
}

// TransactionStore persists a user's transactions.
type TransactionStore interface {
	// CreateTransaction stores t and returns its new ID. t.ID is ignored.
	CreateTransaction(ctx context.Context, userID string, t domain.Transaction) (string, error)

	// UpdateTransaction applies patch to the transaction.
	UpdateTransaction(ctx context.Context, userID, id string, patch domain.TransactionPatch) error

	// DeleteTransaction removes a single transaction.
	DeleteTransaction(ctx context.Context, userID, id string) error

	// SubscribeTransactions delivers the full transaction list, sorted by
	// date descending, now and after every change.
	SubscribeTransactions(ctx context.Context, userID string, onSnapshot func([]domain.Transaction), onError func(error)) (Unsubscribe, error)
}

// Store is the combined collaborator.
type Store interface {
	AccountStore
	TransactionStore
}

// BatchDeleter is implemented by stores that can delete many transactions
// atomically: either all of ids are removed or none is.
type BatchDeleter interface {
	DeleteTransactions(ctx context.Context, userID string, ids []string) error
}

// SortTransactions orders txs by date descending, newest creation first
// within a day, then by ID.
func SortTransactions(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.Date != b.Date {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
