package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/shopspring/decimal"
)

// AccountInput is the raw account form.
type AccountInput struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	Currency       string `json:"currency"`
	InitialBalance string `json:"initialBalance"`
	Icon           string `json:"icon"`
}

// CreateAccount validates in and stores a new account. An empty or
// unparseable initial balance becomes 0; type defaults to checking and
// currency to the base currency.
func (s *Service) CreateAccount(ctx context.Context, userID string, in AccountInput) (domain.Account, error) {
	acc, err := s.buildAccount(in)
	if err != nil {
		return domain.Account{}, err
	}

	id, err := s.store.CreateAccount(ctx, userID, acc)
	if err != nil {
		return domain.Account{}, fmt.Errorf("CreateAccount: %w", err)
	}
	acc.ID = id

	log := logger.FromContext(ctx)
	log.Info().
		Str("account_id", id).
		Str("currency", string(acc.Currency)).
		Msg("Account created")
	return acc, nil
}

func (s *Service) buildAccount(in AccountInput) (domain.Account, error) {
	name := s.clean(in.Name)
	if name == "" {
		return domain.Account{}, invalid("name", "El nombre de la cuenta es obligatorio.")
	}

	typ := domain.AccountChecking
	if raw := strings.TrimSpace(in.Type); raw != "" {
		typ = domain.AccountType(strings.ToLower(raw))
		if !typ.Valid() {
			return domain.Account{}, invalid("type", fmt.Sprintf("Tipo de cuenta desconocido: %q.", in.Type))
		}
	}

	cur := domain.BaseCurrency
	if strings.TrimSpace(in.Currency) != "" {
		c, err := domain.ParseCurrency(in.Currency)
		if err != nil {
			return domain.Account{}, invalid("currency", fmt.Sprintf("Moneda no soportada: %q.", in.Currency))
		}
		cur = c
	}

	return domain.Account{
		Name:           name,
		Type:           typ,
		Currency:       cur,
		InitialBalance: parseInitialBalance(in.InitialBalance),
		Icon:           s.clean(in.Icon),
	}, nil
}

// parseInitialBalance falls back to zero on anything that is not a number.
func parseInitialBalance(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// UpdateAccount validates the fields present in patch and applies it.
// Changing Currency or InitialBalance re-anchors the account's history.
func (s *Service) UpdateAccount(ctx context.Context, userID, id string, patch domain.AccountPatch) error {
	if id == "" {
		return invalid("id", "Falta la cuenta a modificar.")
	}
	if patch.IsEmpty() {
		return invalid("", "No hay cambios para guardar.")
	}

	if patch.Name != nil {
		name := s.clean(*patch.Name)
		if name == "" {
			return invalid("name", "El nombre de la cuenta es obligatorio.")
		}
		patch.Name = &name
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return invalid("type", fmt.Sprintf("Tipo de cuenta desconocido: %q.", *patch.Type))
	}
	if patch.Currency != nil && !patch.Currency.Valid() {
		return invalid("currency", fmt.Sprintf("Moneda no soportada: %q.", *patch.Currency))
	}
	if patch.Icon != nil {
		icon := s.clean(*patch.Icon)
		patch.Icon = &icon
	}

	if err := s.store.UpdateAccount(ctx, userID, id, patch); err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	return nil
}

// DeleteAccount removes the account together with every transaction that
// names it as source or destination. txs is the caller's current view of
// the user's transactions. It returns the IDs of the transactions removed.
//
// When the store supports atomic batch deletes the transactions go in one
// call; otherwise each is deleted independently and failures are collected.
// The account is deleted last. If any transaction could not be removed the
// result is a *CascadeError; the ledger already treats transactions of a
// missing account as orphans.
func (s *Service) DeleteAccount(ctx context.Context, userID, accountID string, txs []domain.Transaction) ([]string, error) {
	if accountID == "" {
		return nil, invalid("id", "Falta la cuenta a eliminar.")
	}
	log := logger.FromContext(ctx).With().Str("account_id", accountID).Logger()

	related := relatedTransactions(txs, accountID)

	var (
		deleted []string
		failed  []string
		errs    []error
	)
	if batch, ok := s.store.(store.BatchDeleter); ok && len(related) > 0 {
		if err := batch.DeleteTransactions(ctx, userID, related); err != nil {
			return nil, fmt.Errorf("DeleteAccount: deleting %d transactions: %w", len(related), err)
		}
		deleted = related
	} else {
		for _, id := range related {
			if err := s.store.DeleteTransaction(ctx, userID, id); err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Warn().Err(err).Str("transaction_id", id).Msg("Cascade delete of transaction failed")
				failed = append(failed, id)
				errs = append(errs, fmt.Errorf("transaction %s: %w", id, err))
				continue
			}
			deleted = append(deleted, id)
		}
	}

	accErr := s.store.DeleteAccount(ctx, userID, accountID)
	if accErr != nil {
		errs = append(errs, fmt.Errorf("account %s: %w", accountID, accErr))
	}

	if len(failed) > 0 {
		return deleted, &CascadeError{
			AccountID:      accountID,
			Orphaned:       failed,
			AccountDeleted: accErr == nil,
			Err:            errors.Join(errs...),
		}
	}
	if accErr != nil {
		return deleted, fmt.Errorf("DeleteAccount: %w", accErr)
	}

	log.Info().Int("transactions_deleted", len(deleted)).Msg("Account deleted")
	return deleted, nil
}

// relatedTransactions returns the IDs of txs whose source or destination
// is accountID.
func relatedTransactions(txs []domain.Transaction, accountID string) []string {
	var ids []string
	for _, t := range txs {
		if t.AccountID == accountID || t.ToAccountID == accountID {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
