// Package ledger computes account balances, the converted portfolio total and
// the monthly flow from an immutable snapshot of accounts and transactions.
//
// Every function in this package is pure: the result depends only on the
// snapshot, the rates and, where relevant, the reference time.
package ledger

import "github.com/dvloznov/gastosmart/internal/domain"

// Snapshot is the immutable input of every ledger computation. Build it with
// NewSnapshot, or replace one half with WithAccounts / WithTransactions.
type Snapshot struct {
	Accounts     []domain.Account
	Transactions []domain.Transaction

	index map[string]int
}

// NewSnapshot copies the given slices and indexes accounts by ID.
func NewSnapshot(accounts []domain.Account, transactions []domain.Transaction) Snapshot {
	s := Snapshot{
		Accounts:     append([]domain.Account(nil), accounts...),
		Transactions: append([]domain.Transaction(nil), transactions...),
	}
	s.index = buildIndex(s.Accounts)
	return s
}

// WithAccounts returns a new snapshot holding accounts and the current transactions.
func (s Snapshot) WithAccounts(accounts []domain.Account) Snapshot {
	return NewSnapshot(accounts, s.Transactions)
}

// WithTransactions returns a new snapshot holding the current accounts and transactions.
func (s Snapshot) WithTransactions(transactions []domain.Transaction) Snapshot {
	return NewSnapshot(s.Accounts, transactions)
}

// Account looks up an account by ID.
func (s Snapshot) Account(id string) (domain.Account, bool) {
	i, ok := s.lookup()[id]
	if !ok {
		return domain.Account{}, false
	}
	return s.Accounts[i], true
}

// Orphans returns the transactions whose source account is not in the snapshot.
func (s Snapshot) Orphans() []domain.Transaction {
	idx := s.lookup()
	var out []domain.Transaction
	for _, t := range s.Transactions {
		if _, ok := idx[t.AccountID]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (s Snapshot) lookup() map[string]int {
	if s.index != nil {
		return s.index
	}
	return buildIndex(s.Accounts)
}

func buildIndex(accounts []domain.Account) map[string]int {
	idx := make(map[string]int, len(accounts))
	for i, a := range accounts {
		idx[a.ID] = i
	}
	return idx
}
