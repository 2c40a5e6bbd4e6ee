package handlers

import (
	"net/http"

	"github.com/dvloznov/gastosmart/internal/api/middleware"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/lifecycle"
	"github.com/go-chi/chi/v5"
)

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	sessions Sessions
	service  *lifecycle.Service
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(sessions Sessions, service *lifecycle.Service) *AccountsHandler {
	return &AccountsHandler{sessions: sessions, service: service}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	sess, ok := openSession(w, r, h.sessions)
	if !ok {
		return
	}

	balances := sess.Balances()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": balances,
		"count":    len(balances),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.AccountInput
	if !decodeJSON(w, r, &in) {
		return
	}

	acc, err := h.service.CreateAccount(r.Context(), middleware.UserID(r.Context()), in)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create account")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, acc)
}

// UpdateAccount handles PATCH /api/accounts/{id}
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var patch domain.AccountPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.UpdateAccount(r.Context(), middleware.UserID(r.Context()), id, patch); err != nil {
		writeServiceError(w, r, err, "Failed to update account")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": "updated"})
}

// DeleteAccount handles DELETE /api/accounts/{id}
// The account's transactions, as either source or destination, go with it.
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess, ok := openSession(w, r, h.sessions)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	deleted, err := h.service.DeleteAccount(r.Context(), middleware.UserID(r.Context()), id, sess.Transactions())
	if err != nil {
		writeServiceError(w, r, err, "Failed to delete account")
		return
	}

	if deleted == nil {
		deleted = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":                  id,
		"deletedTransactions": deleted,
	})
}
