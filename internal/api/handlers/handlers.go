// Package handlers implements the JSON endpoints of the API server. Every
// handler expects middleware.Auth to have run: the user comes from the
// request context, never from the body or the path.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvloznov/gastosmart/internal/api/middleware"
	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/lifecycle"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/session"
	"github.com/dvloznov/gastosmart/internal/store"
)

// Sessions hands out the live ledger view of a user.
type Sessions interface {
	Get(ctx context.Context, userID string) (*session.Session, error)
}

var _ Sessions = (*session.Manager)(nil)

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// openSession resolves the caller's session, writing the error response
// when it cannot be opened.
func openSession(w http.ResponseWriter, r *http.Request, sessions Sessions) (*session.Session, bool) {
	userID := middleware.UserID(r.Context())
	sess, err := sessions.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load your data")
		return nil, false
	}
	return sess, true
}

// writeServiceError maps domain and store errors to HTTP statuses.
// Validation messages are shown to the user verbatim; anything else gets
// fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	log := logger.FromContext(r.Context())

	var invalid *lifecycle.ValidationError
	var cascade *lifecycle.CascadeError
	switch {
	case errors.As(err, &cascade):
		log.Error().Err(err).Strs("orphaned", cascade.Orphaned).Bool("account_deleted", cascade.AccountDeleted).Msg("Cascade delete incomplete")
		middleware.WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":          fallback,
			"orphaned":       cascade.Orphaned,
			"accountDeleted": cascade.AccountDeleted,
		})
	case errors.As(err, &invalid):
		middleware.WriteError(w, http.StatusBadRequest, invalid.Message)
	case errors.Is(err, currency.ErrInvalidRate):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case store.IsPermissionDenied(err):
		log.Warn().Err(err).Msg("Permission denied")
		middleware.WriteError(w, http.StatusForbidden, "Permission denied")
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn().Err(err).Msg("Request cancelled")
		middleware.WriteError(w, http.StatusGatewayTimeout, fallback)
	default:
		log.Error().Err(err).Msg(fallback)
		middleware.WriteError(w, http.StatusBadGateway, fallback)
	}
}

// decodeJSON reads a JSON body into v, answering 400 when it is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
