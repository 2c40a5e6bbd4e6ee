// Package session keeps a user's ledger inputs current. It subscribes to
// the account and transaction feeds, folds each push into an immutable
// ledger.Snapshot and derives every view from that snapshot plus the
// shared rate table.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/reports"
	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/rs/zerolog"
)

// Session is one user's live view of the ledger.
type Session struct {
	userID string
	rates  *currency.Table
	engine *ledger.Engine
	now    func() time.Time
	log    zerolog.Logger

	mu            sync.RWMutex
	snap          ledger.Snapshot
	accountsReady bool
	txReady       bool
	closed        bool
	lastErr       error
	pushes        uint64
	unsubs        []store.Unsubscribe

	ready     chan struct{}
	readyOnce sync.Once
}

// Open subscribes to both feeds of userID. The rate table is shared, never
// copied: every derived value reads its current state.
func Open(ctx context.Context, s store.Store, userID string, rates *currency.Table, engine *ledger.Engine) (*Session, error) {
	sess := &Session{
		userID: userID,
		rates:  rates,
		engine: engine,
		now:    time.Now,
		log:    logger.FromContext(ctx).With().Str("user_id", userID).Logger(),
		snap:   ledger.NewSnapshot(nil, nil),
		ready:  make(chan struct{}),
	}

	unsubAcc, err := s.SubscribeAccounts(ctx, userID, sess.onAccounts, sess.onError)
	if err != nil {
		return nil, fmt.Errorf("Open: subscribing accounts: %w", err)
	}
	unsubTx, err := s.SubscribeTransactions(ctx, userID, sess.onTransactions, sess.onError)
	if err != nil {
		unsubAcc()
		return nil, fmt.Errorf("Open: subscribing transactions: %w", err)
	}

	sess.mu.Lock()
	sess.unsubs = []store.Unsubscribe{unsubAcc, unsubTx}
	sess.mu.Unlock()

	sess.log.Debug().Msg("Session opened")
	return sess, nil
}

func (s *Session) onAccounts(accs []domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.snap = s.snap.WithAccounts(accs)
	s.accountsReady = true
	s.pushed()
}

func (s *Session) onTransactions(txs []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.snap = s.snap.WithTransactions(txs)
	s.txReady = true
	s.pushed()
}

// pushed must be called with mu held.
func (s *Session) pushed() {
	s.pushes++
	s.lastErr = nil
	if s.accountsReady && s.txReady {
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

func (s *Session) onError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastErr = err
	s.log.Warn().Err(err).Msg("Feed error")
}

// Close unsubscribes both feeds together. Pushes that arrive afterwards are
// dropped. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	// unsubscribe outside mu; a store may deliver a final push while tearing down
	for _, u := range unsubs {
		u()
	}
	s.log.Debug().Msg("Session closed")
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Ready reports whether both feeds have delivered at least once.
func (s *Session) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// WaitReady blocks until both feeds have delivered or ctx is done.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("WaitReady: %w", ctx.Err())
	}
}

// Err returns the last feed error, cleared by the next successful push.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Pushes counts the snapshots received so far on both feeds.
func (s *Session) Pushes() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pushes
}

// Snapshot returns the current immutable snapshot.
func (s *Session) Snapshot() ledger.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Accounts returns the current account list.
func (s *Session) Accounts() []domain.Account {
	return append([]domain.Account(nil), s.Snapshot().Accounts...)
}

// Transactions returns the current transactions, newest first.
func (s *Session) Transactions() []domain.Transaction {
	return append([]domain.Transaction(nil), s.Snapshot().Transactions...)
}

// Rates returns the rate table's current state.
func (s *Session) Rates() currency.Rates {
	return s.rates.Rates()
}

// Dashboard derives balances, total and monthly flow.
func (s *Session) Dashboard() ledger.Dashboard {
	return s.engine.Dashboard(s.Snapshot(), s.rates.Rates(), s.now())
}

// Balances derives every account's balance.
func (s *Session) Balances() []ledger.AccountBalance {
	return ledger.Balances(s.Snapshot(), s.rates.Rates())
}

// Report builds the report view for window w.
func (s *Session) Report(w reports.Window) reports.Report {
	return reports.Build(s.Snapshot(), s.rates.Rates(), w, s.now())
}
