package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/gastosmart/internal/advisor"
	"github.com/dvloznov/gastosmart/internal/api/middleware"
	"github.com/dvloznov/gastosmart/internal/logger"
)

// Assistant answers chat and search questions.
type Assistant interface {
	Chat(ctx context.Context, history []advisor.Message, message string) (advisor.Reply, error)
	Search(ctx context.Context, query string) (advisor.Reply, error)
}

var _ Assistant = (*advisor.Advisor)(nil)

// AdvisorHandler handles the financial assistant endpoints. With no
// assistant configured both endpoints answer 503.
type AdvisorHandler struct {
	assistant Assistant
}

// NewAdvisorHandler creates a new advisor handler.
func NewAdvisorHandler(assistant Assistant) *AdvisorHandler {
	return &AdvisorHandler{assistant: assistant}
}

// Chat handles POST /api/chat
func (h *AdvisorHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		History []advisor.Message `json:"history"`
		Message string            `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if h.assistant == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Assistant is not configured")
		return
	}

	reply, err := h.assistant.Chat(r.Context(), req.History, req.Message)
	h.writeReply(w, r, reply, err)
}

// Search handles POST /api/search
func (h *AdvisorHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if h.assistant == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Assistant is not configured")
		return
	}

	reply, err := h.assistant.Search(r.Context(), req.Query)
	h.writeReply(w, r, reply, err)
}

func (h *AdvisorHandler) writeReply(w http.ResponseWriter, r *http.Request, reply advisor.Reply, err error) {
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, reply)
	case errors.Is(err, advisor.ErrEmptyMessage):
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Assistant request failed")
		middleware.WriteError(w, http.StatusBadGateway, "Assistant request failed")
	}
}
