package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/shopspring/decimal"
)

type recorder struct {
	mu       sync.Mutex
	accounts [][]domain.Account
	txs      [][]domain.Transaction
}

func (r *recorder) onAccounts(accs []domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, accs)
}

func (r *recorder) onTransactions(txs []domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, txs)
}

func (r *recorder) lastTransactions() []domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txs[len(r.txs)-1]
}

func noError(err error) {}

func TestStore_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := &recorder{}

	unsub, err := s.SubscribeAccounts(ctx, "u1", rec.onAccounts, noError)
	if err != nil {
		t.Fatalf("SubscribeAccounts failed: %v", err)
	}
	defer unsub()

	if len(rec.accounts) != 1 || len(rec.accounts[0]) != 0 {
		t.Fatalf("initial snapshot = %v, want one empty snapshot", rec.accounts)
	}

	id, err := s.CreateAccount(ctx, "u1", domain.Account{ID: "ignored", Name: "Caja", Currency: domain.UYU})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if id == "" || id == "ignored" {
		t.Errorf("CreateAccount returned id %q, want a fresh ID", id)
	}

	name := "Caja de ahorro"
	if err := s.UpdateAccount(ctx, "u1", id, domain.AccountPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateAccount failed: %v", err)
	}
	if got := rec.accounts[len(rec.accounts)-1][0].Name; got != name {
		t.Errorf("pushed name = %q, want %q", got, name)
	}

	if err := s.DeleteAccount(ctx, "u1", id); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if got := len(rec.accounts[len(rec.accounts)-1]); got != 0 {
		t.Errorf("accounts after delete = %d, want 0", got)
	}
	if len(rec.accounts) != 4 {
		t.Errorf("snapshots = %d, want 4", len(rec.accounts))
	}

	if err := s.DeleteAccount(ctx, "u1", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := &recorder{}

	unsub, _ := s.SubscribeTransactions(ctx, "u1", rec.onTransactions, noError)
	defer unsub()

	if _, err := s.CreateTransaction(ctx, "u2", domain.Transaction{Amount: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if len(rec.txs) != 1 {
		t.Errorf("u1 received %d snapshots, want only the initial one", len(rec.txs))
	}

	id, _ := s.CreateTransaction(ctx, "u2", domain.Transaction{})
	if err := s.DeleteTransaction(ctx, "u1", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("cross-user delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_TransactionsSortedByDateDescending(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := &recorder{}

	unsub, _ := s.SubscribeTransactions(ctx, "u1", rec.onTransactions, noError)
	defer unsub()

	for _, day := range []int{5, 20, 1, 12} {
		_, err := s.CreateTransaction(ctx, "u1", domain.Transaction{
			Date:   civil.Date{Year: 2024, Month: time.May, Day: day},
			Amount: decimal.NewFromInt(int64(day)),
		})
		if err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}

	txs := rec.lastTransactions()
	var days []int
	for _, tx := range txs {
		days = append(days, tx.Date.Day)
	}
	want := []int{20, 12, 5, 1}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("days = %v, want %v", days, want)
		}
	}
}

func TestStore_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := &recorder{}

	unsub, _ := s.SubscribeTransactions(ctx, "u1", rec.onTransactions, noError)
	unsub()
	unsub()

	if _, err := s.CreateTransaction(ctx, "u1", domain.Transaction{}); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	if len(rec.txs) != 1 {
		t.Errorf("received %d snapshots after unsubscribe, want 1", len(rec.txs))
	}
}

func TestStore_PushesCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := &recorder{}

	unsub, _ := s.SubscribeAccounts(ctx, "u1", rec.onAccounts, noError)
	defer unsub()

	id, _ := s.CreateAccount(ctx, "u1", domain.Account{Name: "A"})
	rec.accounts[len(rec.accounts)-1][0].Name = "mutated"

	accs, _, err := store.Fetch(ctx, s, "u1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(accs) != 1 || accs[0].ID != id || accs[0].Name != "A" {
		t.Errorf("Fetch() = %+v, want the unmodified account", accs)
	}
}

func TestStore_DeleteTransactionsIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	a, _ := s.CreateTransaction(ctx, "u1", domain.Transaction{})
	b, _ := s.CreateTransaction(ctx, "u1", domain.Transaction{})
	c, _ := s.CreateTransaction(ctx, "u1", domain.Transaction{})

	boom := errors.New("boom")
	s.SetFault(func(op, userID, id string) error {
		if op == "delete-transactions" && id == b {
			return boom
		}
		return nil
	})
	if err := s.DeleteTransactions(ctx, "u1", []string{a, b}); !errors.Is(err, boom) {
		t.Fatalf("DeleteTransactions error = %v, want boom", err)
	}
	_, txs, _ := store.Fetch(ctx, s, "u1")
	if len(txs) != 3 {
		t.Fatalf("transactions after failed batch = %d, want 3", len(txs))
	}

	s.SetFault(nil)
	if err := s.DeleteTransactions(ctx, "u1", []string{a, b}); err != nil {
		t.Fatalf("DeleteTransactions failed: %v", err)
	}
	_, txs, _ = store.Fetch(ctx, s, "u1")
	if len(txs) != 1 || txs[0].ID != c {
		t.Errorf("remaining = %+v, want only %s", txs, c)
	}
}

func TestStore_MissingUserIsPermissionDenied(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, err := s.CreateAccount(ctx, "", domain.Account{}); !store.IsPermissionDenied(err) {
		t.Errorf("CreateAccount error = %v, want permission denied", err)
	}
	if _, err := s.SubscribeTransactions(ctx, "", func([]domain.Transaction) {}, noError); !store.IsPermissionDenied(err) {
		t.Errorf("SubscribeTransactions error = %v, want permission denied", err)
	}
}

func TestStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := &recorder{}

	unsub, _ := s.SubscribeTransactions(ctx, "u1", rec.onTransactions, noError)
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.CreateTransaction(ctx, "u1", domain.Transaction{})
		}()
	}
	wg.Wait()

	if got := len(rec.lastTransactions()); got != 25 {
		t.Errorf("last snapshot has %d transactions, want 25", got)
	}
	// each snapshot grows by one because deliveries are serialized
	for i, snap := range rec.txs {
		if len(snap) != i {
			t.Fatalf("snapshot %d has %d transactions", i, len(snap))
		}
	}
}
