package handlers

import (
	"net/http"
	"strconv"

	"github.com/dvloznov/gastosmart/internal/api/middleware"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/lifecycle"
	"github.com/go-chi/chi/v5"
)

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	sessions Sessions
	service  *lifecycle.Service
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(sessions Sessions, service *lifecycle.Service) *TransactionsHandler {
	return &TransactionsHandler{sessions: sessions, service: service}
}

// ListTransactions handles GET /api/transactions
// Transactions come newest first; ?limit= caps how many.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	sess, ok := openSession(w, r, h.sessions)
	if !ok {
		return
	}

	txs := sess.Transactions()
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if limit < len(txs) {
			txs = txs[:limit]
		}
	}

	// Return array directly for frontend compatibility
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var draft lifecycle.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}

	sess, ok := openSession(w, r, h.sessions)
	if !ok {
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), middleware.UserID(r.Context()), draft, sess.Accounts())
	if err != nil {
		writeServiceError(w, r, err, "Failed to save transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PATCH /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch domain.TransactionPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	sess, ok := openSession(w, r, h.sessions)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.UpdateTransaction(r.Context(), middleware.UserID(r.Context()), id, patch, sess.Transactions()); err != nil {
		writeServiceError(w, r, err, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": "updated"})
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteTransaction(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		writeServiceError(w, r, err, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
