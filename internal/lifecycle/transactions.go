package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/store"
	"github.com/shopspring/decimal"
)

// Draft is the raw add-transaction form.
type Draft struct {
	Date          string                 `json:"date"`
	Amount        string                 `json:"amount"`
	Type          domain.TransactionType `json:"type"`
	Category      string                 `json:"category"`
	Description   string                 `json:"description"`
	Merchant      string                 `json:"merchant,omitempty"`
	AccountID     string                 `json:"accountId"`
	ToAccountID   string                 `json:"toAccountId,omitempty"`
	PaymentMethod domain.PaymentMethod   `json:"paymentMethod,omitempty"`
}

// CreateTransaction validates d against the user's accounts and stores the
// resulting transaction.
func (s *Service) CreateTransaction(ctx context.Context, userID string, d Draft, accounts []domain.Account) (domain.Transaction, error) {
	t, err := s.BuildTransaction(d, accounts)
	if err != nil {
		return domain.Transaction{}, err
	}

	id, err := s.store.CreateTransaction(ctx, userID, t)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("CreateTransaction: %w", err)
	}
	t.ID = id

	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction_id", id).
		Str("type", string(t.Type)).
		Str("account_id", t.AccountID).
		Msg("Transaction created")
	return t, nil
}

// BuildTransaction turns a draft into a transaction without storing it.
//
// Amount must be a positive number. Description is required except for
// transfers, which always get the fixed transfer label and category and
// need a known destination other than the source. Payment method is kept
// for expenses only. An empty date means today.
func (s *Service) BuildTransaction(d Draft, accounts []domain.Account) (domain.Transaction, error) {
	rawAmount := strings.TrimSpace(d.Amount)
	if rawAmount == "" {
		return domain.Transaction{}, invalid("amount", "El monto es obligatorio.")
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return domain.Transaction{}, invalid("amount", "El monto no es un número válido.")
	}
	if !amount.IsPositive() {
		return domain.Transaction{}, invalid("amount", "El monto debe ser mayor que cero.")
	}

	typ := d.Type
	if typ == "" {
		typ = domain.Expense
	}
	if !typ.Valid() {
		return domain.Transaction{}, invalid("type", fmt.Sprintf("Tipo de movimiento desconocido: %q.", d.Type))
	}

	description := s.clean(d.Description)
	if typ != domain.Transfer && description == "" {
		return domain.Transaction{}, invalid("description", "La descripción es obligatoria.")
	}

	if d.AccountID == "" {
		return domain.Transaction{}, invalid("accountId", "Selecciona una cuenta.")
	}
	if !hasAccount(accounts, d.AccountID) {
		return domain.Transaction{}, invalid("accountId", "La cuenta seleccionada no existe.")
	}

	date := civil.DateOf(s.now())
	if raw := strings.TrimSpace(d.Date); raw != "" {
		date, err = civil.ParseDate(raw)
		if err != nil {
			return domain.Transaction{}, invalid("date", "La fecha debe tener el formato AAAA-MM-DD.")
		}
	}

	t := domain.Transaction{
		Date:        date,
		Amount:      amount,
		Type:        typ,
		Category:    s.clean(d.Category),
		Description: description,
		Merchant:    s.clean(d.Merchant),
		AccountID:   d.AccountID,
		CreatedAt:   s.now().UTC(),
	}

	switch typ {
	case domain.Transfer:
		if d.ToAccountID == "" || d.ToAccountID == d.AccountID || !hasAccount(accounts, d.ToAccountID) {
			return domain.Transaction{}, invalid("toAccountId", "Por favor selecciona una cuenta destino válida.")
		}
		t.ToAccountID = d.ToAccountID
		t.Description = domain.TransferDescription
		t.Category = domain.CategoryTransfer
	case domain.Expense:
		t.PaymentMethod = d.PaymentMethod
		if t.PaymentMethod == "" {
			t.PaymentMethod = domain.PaymentDebit
		}
		if !t.PaymentMethod.Valid() {
			return domain.Transaction{}, invalid("paymentMethod", fmt.Sprintf("Medio de pago desconocido: %q.", d.PaymentMethod))
		}
	}

	if t.Category == "" {
		t.Category = domain.CategoryOther
	}
	return t, nil
}

// UpdateTransaction validates the fields present in patch against the stored
// transaction and applies it. Type and accounts cannot change; delete and
// re-create instead. Transfers keep their fixed label and category, and only
// expenses carry a payment method.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id string, patch domain.TransactionPatch, transactions []domain.Transaction) error {
	if id == "" {
		return invalid("id", "Falta el movimiento a modificar.")
	}
	current, ok := findTransaction(transactions, id)
	if !ok {
		return fmt.Errorf("UpdateTransaction: %s: %w", id, store.ErrNotFound)
	}
	if current.Type == domain.Transfer {
		if patch.Description != nil {
			return invalid("description", "La descripción de una transferencia no se puede cambiar.")
		}
		if patch.Category != nil {
			return invalid("category", "La categoría de una transferencia no se puede cambiar.")
		}
	}
	if patch.PaymentMethod != nil && current.Type != domain.Expense {
		return invalid("paymentMethod", "Solo los gastos tienen medio de pago.")
	}
	if patch.Amount != nil && !patch.Amount.IsPositive() {
		return invalid("amount", "El monto debe ser mayor que cero.")
	}
	if patch.Description != nil {
		desc := s.clean(*patch.Description)
		if desc == "" {
			return invalid("description", "La descripción es obligatoria.")
		}
		patch.Description = &desc
	}
	if patch.Category != nil {
		cat := s.clean(*patch.Category)
		if cat == "" {
			cat = domain.CategoryOther
		}
		patch.Category = &cat
	}
	if patch.Merchant != nil {
		m := s.clean(*patch.Merchant)
		patch.Merchant = &m
	}
	if patch.PaymentMethod != nil && !patch.PaymentMethod.Valid() {
		return invalid("paymentMethod", fmt.Sprintf("Medio de pago desconocido: %q.", *patch.PaymentMethod))
	}

	if err := s.store.UpdateTransaction(ctx, userID, id, patch); err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	return nil
}

// DeleteTransaction removes a single transaction. It does not cascade.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id string) error {
	if id == "" {
		return invalid("id", "Falta el movimiento a eliminar.")
	}
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

func findTransaction(transactions []domain.Transaction, id string) (domain.Transaction, bool) {
	for _, t := range transactions {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Transaction{}, false
}

func hasAccount(accounts []domain.Account, id string) bool {
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}
