package store

import (
	"context"
	"fmt"

	"github.com/dvloznov/gastosmart/internal/domain"
)

// Fetch reads a user's accounts and transactions once by subscribing to both
// feeds, waiting for their first snapshot and unsubscribing.
func Fetch(ctx context.Context, s Store, userID string) ([]domain.Account, []domain.Transaction, error) {
	accCh := make(chan []domain.Account, 1)
	txCh := make(chan []domain.Transaction, 1)
	errCh := make(chan error, 2)

	unsubAcc, err := s.SubscribeAccounts(ctx, userID,
		func(accs []domain.Account) {
			select {
			case accCh <- accs:
			default:
			}
		},
		func(err error) {
			select {
			case errCh <- err:
			default:
			}
		})
	if err != nil {
		return nil, nil, fmt.Errorf("Fetch: subscribing accounts: %w", err)
	}
	defer unsubAcc()

	unsubTx, err := s.SubscribeTransactions(ctx, userID,
		func(txs []domain.Transaction) {
			select {
			case txCh <- txs:
			default:
			}
		},
		func(err error) {
			select {
			case errCh <- err:
			default:
			}
		})
	if err != nil {
		return nil, nil, fmt.Errorf("Fetch: subscribing transactions: %w", err)
	}
	defer unsubTx()

	var (
		accs   []domain.Account
		txs    []domain.Transaction
		gotAcc bool
		gotTxs bool
	)
	for !gotAcc || !gotTxs {
		select {
		case accs = <-accCh:
			gotAcc = true
		case txs = <-txCh:
			gotTxs = true
		case err := <-errCh:
			return nil, nil, fmt.Errorf("Fetch: feed error: %w", err)
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("Fetch: %w", ctx.Err())
		}
	}
	return accs, txs, nil
}
