package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/store"
)

type subscriber struct {
	userID string
	kick   chan struct{}
}

// SubscribeAccounts implements store.AccountStore. The first snapshot is
// read synchronously; later ones come from a polling goroutine that stops
// when the returned Unsubscribe is called.
func (s *Store) SubscribeAccounts(ctx context.Context, userID string, onSnapshot func([]domain.Account), onError func(error)) (store.Unsubscribe, error) {
	list := func(ctx context.Context) ([]domain.Account, error) { return s.ListAccounts(ctx, userID) }
	return subscribe(ctx, s, userID, list, onSnapshot, onError)
}

// SubscribeTransactions implements store.TransactionStore.
func (s *Store) SubscribeTransactions(ctx context.Context, userID string, onSnapshot func([]domain.Transaction), onError func(error)) (store.Unsubscribe, error) {
	list := func(ctx context.Context) ([]domain.Transaction, error) { return s.ListTransactions(ctx, userID) }
	return subscribe(ctx, s, userID, list, onSnapshot, onError)
}

func subscribe[T any](
	ctx context.Context,
	s *Store,
	userID string,
	list func(context.Context) ([]T, error),
	onSnapshot func([]T),
	onError func(error),
) (store.Unsubscribe, error) {
	first, err := list(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: initial read: %w", err)
	}
	last := fingerprint(first)
	onSnapshot(first)

	// the subscription outlives the request that opened it
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	id, kick := s.register(userID)
	log := logger.FromContext(ctx).With().Str("user_id", userID).Int("subscription", id).Logger()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			case <-kick:
			}

			items, err := list(pollCtx)
			if pollCtx.Err() != nil {
				return
			}
			if err != nil {
				log.Warn().Err(err).Msg("Subscription poll failed")
				if onError != nil {
					onError(err)
				}
				continue
			}
			if fp := fingerprint(items); fp != last {
				last = fp
				onSnapshot(items)
			}
		}
	}()

	return func() {
		cancel()
		s.unregister(id)
	}, nil
}

func (s *Store) register(userID string) (int, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	kick := make(chan struct{}, 1)
	s.kicks[id] = subscriber{userID: userID, kick: kick}
	return id, kick
}

func (s *Store) unregister(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kicks, id)
}

// kick asks every subscription of userID to poll now instead of waiting for
// the next tick.
func (s *Store) kick(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.kicks {
		if sub.userID != userID {
			continue
		}
		select {
		case sub.kick <- struct{}{}:
		default:
		}
	}
}

func fingerprint(v interface{}) uint64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}
