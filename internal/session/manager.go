package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/ledger"
	"github.com/dvloznov/gastosmart/internal/store"
)

// Manager keeps at most one open session per user.
type Manager struct {
	store  store.Store
	rates  *currency.Table
	engine *ledger.Engine

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a manager whose sessions share rates and engine.
func NewManager(s store.Store, rates *currency.Table, engine *ledger.Engine) *Manager {
	return &Manager{
		store:    s,
		rates:    rates,
		engine:   engine,
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, opening it on first use, and waits until
// both feeds have delivered.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	sess, err := m.session(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sess.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return sess, nil
}

func (m *Manager) session(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("Get: session manager closed")
	}
	if sess, ok := m.sessions[userID]; ok && !sess.Closed() {
		return sess, nil
	}

	sess, err := Open(ctx, m.store, userID, m.rates, m.engine)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	m.sessions[userID] = sess
	return sess, nil
}

// Rates returns the shared rate table.
func (m *Manager) Rates() *currency.Table {
	return m.rates
}

// End closes and forgets the user's session, as on logout.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		sess.Close()
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close ends every session. Get fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.closed = true
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
