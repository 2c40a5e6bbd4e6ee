// Package inmemory is a process-local implementation of store.Store.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/google/uuid"
)

// Fault lets tests make individual operations fail. op is one of
// "create-account", "update-account", "delete-account", "create-transaction",
// "update-transaction", "delete-transaction", "delete-transactions".
type Fault func(op, userID, id string) error

type accountSub struct {
	userID     string
	onSnapshot func([]domain.Account)
}

type transactionSub struct {
	userID     string
	onSnapshot func([]domain.Transaction)
}

// Store keeps every user's records in maps and pushes full copies to
// subscribers after each mutation. It is safe for concurrent use.
// Subscriber callbacks must not mutate the store.
type Store struct {
	// notifyMu serializes mutation and delivery so subscribers observe
	// snapshots in mutation order.
	notifyMu sync.Mutex

	mu           sync.RWMutex
	accounts     map[string]map[string]domain.Account
	transactions map[string]map[string]domain.Transaction
	accountSubs  map[int]accountSub
	txSubs       map[int]transactionSub
	nextSub      int
	fault        Fault
	now          func() time.Time
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.BatchDeleter = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]map[string]domain.Account),
		transactions: make(map[string]map[string]domain.Transaction),
		accountSubs:  make(map[int]accountSub),
		txSubs:       make(map[int]transactionSub),
		now:          time.Now,
	}
}

// SetFault installs f; nil removes it.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

func (s *Store) check(op, userID, id string) error {
	if userID == "" {
		return fmt.Errorf("%s: %w: missing user", op, store.ErrPermissionDenied)
	}
	if s.fault != nil {
		if err := s.fault(op, userID, id); err != nil {
			return err
		}
	}
	return nil
}

// CreateAccount implements store.AccountStore.
func (s *Store) CreateAccount(ctx context.Context, userID string, acc domain.Account) (string, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := s.check("create-account", userID, ""); err != nil {
		s.mu.Unlock()
		return "", err
	}
	acc.ID = uuid.NewString()
	if s.accounts[userID] == nil {
		s.accounts[userID] = make(map[string]domain.Account)
	}
	s.accounts[userID][acc.ID] = acc
	s.mu.Unlock()

	s.publishAccounts(userID)
	return acc.ID, nil
}

// UpdateAccount implements store.AccountStore.
func (s *Store) UpdateAccount(ctx context.Context, userID, id string, patch domain.AccountPatch) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := s.check("update-account", userID, id); err != nil {
		s.mu.Unlock()
		return err
	}
	acc, ok := s.accounts[userID][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("UpdateAccount: account %s: %w", id, store.ErrNotFound)
	}
	s.accounts[userID][id] = patch.Apply(acc)
	s.mu.Unlock()

	s.publishAccounts(userID)
	return nil
}

// DeleteAccount implements store.AccountStore.
func (s *Store) DeleteAccount(ctx context.Context, userID, id string) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := s.check("delete-account", userID, id); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.accounts[userID][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("DeleteAccount: account %s: %w", id, store.ErrNotFound)
	}
	delete(s.accounts[userID], id)
	s.mu.Unlock()

	s.publishAccounts(userID)
	return nil
}

// CreateTransaction implements store.TransactionStore.
func (s *Store) CreateTransaction(ctx context.Context, userID string, t domain.Transaction) (string, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := s.check("create-transaction", userID, ""); err != nil {
		s.mu.Unlock()
		return "", err
	}
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if s.transactions[userID] == nil {
		s.transactions[userID] = make(map[string]domain.Transaction)
	}
	s.transactions[userID][t.ID] = t
	s.mu.Unlock()

	s.publishTransactions(userID)
	return t.ID, nil
}

// UpdateTransaction implements store.TransactionStore.
func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, patch domain.TransactionPatch) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := s.check("update-transaction", userID, id); err != nil {
		s.mu.Unlock()
		return err
	}
	t, ok := s.transactions[userID][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("UpdateTransaction: transaction %s: %w", id, store.ErrNotFound)
	}
	s.transactions[userID][id] = patch.Apply(t)
	s.mu.Unlock()

	s.publishTransactions(userID)
	return nil
}

// DeleteTransaction implements store.TransactionStore.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := s.check("delete-transaction", userID, id); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.transactions[userID][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("DeleteTransaction: transaction %s: %w", id, store.ErrNotFound)
	}
	delete(s.transactions[userID], id)
	s.mu.Unlock()

	s.publishTransactions(userID)
	return nil
}

// DeleteTransactions implements store.BatchDeleter. Unknown IDs are ignored;
// a fault on any ID aborts the whole batch.
func (s *Store) DeleteTransactions(ctx context.Context, userID string, ids []string) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	for _, id := range ids {
		if err := s.check("delete-transactions", userID, id); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	for _, id := range ids {
		delete(s.transactions[userID], id)
	}
	s.mu.Unlock()

	s.publishTransactions(userID)
	return nil
}

// SubscribeAccounts implements store.AccountStore. The current snapshot is
// delivered before SubscribeAccounts returns.
func (s *Store) SubscribeAccounts(ctx context.Context, userID string, onSnapshot func([]domain.Account), onError func(error)) (store.Unsubscribe, error) {
	if userID == "" {
		return nil, fmt.Errorf("SubscribeAccounts: %w: missing user", store.ErrPermissionDenied)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.accountSubs[id] = accountSub{userID: userID, onSnapshot: onSnapshot}
	accs := s.accountsLocked(userID)
	s.mu.Unlock()

	onSnapshot(accs)
	return s.unsubscriber(func() { delete(s.accountSubs, id) }), nil
}

// SubscribeTransactions implements store.TransactionStore.
func (s *Store) SubscribeTransactions(ctx context.Context, userID string, onSnapshot func([]domain.Transaction), onError func(error)) (store.Unsubscribe, error) {
	if userID == "" {
		return nil, fmt.Errorf("SubscribeTransactions: %w: missing user", store.ErrPermissionDenied)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.txSubs[id] = transactionSub{userID: userID, onSnapshot: onSnapshot}
	txs := s.transactionsLocked(userID)
	s.mu.Unlock()

	onSnapshot(txs)
	return s.unsubscriber(func() { delete(s.txSubs, id) }), nil
}

func (s *Store) unsubscriber(remove func()) store.Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			remove()
		})
	}
}

// publishAccounts must be called with notifyMu held and mu released.
func (s *Store) publishAccounts(userID string) {
	s.mu.RLock()
	var targets []func([]domain.Account)
	for _, sub := range s.accountSubs {
		if sub.userID == userID {
			targets = append(targets, sub.onSnapshot)
		}
	}
	s.mu.RUnlock()

	for _, fn := range targets {
		s.mu.RLock()
		accs := s.accountsLocked(userID)
		s.mu.RUnlock()
		fn(accs)
	}
}

func (s *Store) publishTransactions(userID string) {
	s.mu.RLock()
	var targets []func([]domain.Transaction)
	for _, sub := range s.txSubs {
		if sub.userID == userID {
			targets = append(targets, sub.onSnapshot)
		}
	}
	s.mu.RUnlock()

	for _, fn := range targets {
		s.mu.RLock()
		txs := s.transactionsLocked(userID)
		s.mu.RUnlock()
		fn(txs)
	}
}

// accountsLocked returns a fresh copy ordered by name then ID.
func (s *Store) accountsLocked(userID string) []domain.Account {
	out := make([]domain.Account, 0, len(s.accounts[userID]))
	for _, a := range s.accounts[userID] {
		out = append(out, a)
	}
	sortAccounts(out)
	return out
}

func (s *Store) transactionsLocked(userID string) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(s.transactions[userID]))
	for _, t := range s.transactions[userID] {
		out = append(out, t)
	}
	store.SortTransactions(out)
	return out
}

func sortAccounts(accs []domain.Account) {
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].Name != accs[j].Name {
			return accs[i].Name < accs[j].Name
		}
		return accs[i].ID < accs[j].ID
	})
}
