package handlers

import (
	"net/http"

	"github.com/dvloznov/gastosmart/internal/api/middleware"
	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/domain"
	"github.com/dvloznov/gastosmart/internal/logger"
	"github.com/dvloznov/gastosmart/internal/reports"
	"github.com/shopspring/decimal"
)

// LedgerHandler serves the derived views: dashboard, reports and the
// exchange-rate table they are computed with.
type LedgerHandler struct {
	sessions Sessions
	rates    *currency.Table
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(sessions Sessions, rates *currency.Table) *LedgerHandler {
	return &LedgerHandler{sessions: sessions, rates: rates}
}

type ratesResponse struct {
	Base    domain.Currency                     `json:"base"`
	Rates   map[domain.Currency]decimal.Decimal `json:"rates"`
	Version uint64                              `json:"version"`
}

func (h *LedgerHandler) ratesResponse() ratesResponse {
	return ratesResponse{
		Base:    domain.BaseCurrency,
		Rates:   h.rates.Rates().Map(),
		Version: h.rates.Version(),
	}
}

// GetRates handles GET /api/rates
func (h *LedgerHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.ratesResponse())
}

// UpdateRates handles PUT /api/rates
// The body maps currency codes to base-currency units per unit, e.g.
// {"USD": "41.80"}. Either every rate is accepted or none is.
func (h *LedgerHandler) UpdateRates(w http.ResponseWriter, r *http.Request) {
	var edits map[domain.Currency]decimal.Decimal
	if !decodeJSON(w, r, &edits) {
		return
	}
	if len(edits) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "No rates given")
		return
	}

	if err := h.rates.SetAll(edits); err != nil {
		writeServiceError(w, r, err, "Failed to update rates")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Int("rates", len(edits)).Uint64("version", h.rates.Version()).Msg("Exchange rates updated")
	middleware.WriteJSON(w, http.StatusOK, h.ratesResponse())
}

// GetDashboard handles GET /api/dashboard
func (h *LedgerHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := openSession(w, r, h.sessions)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sess.Dashboard())
}

// GetReport handles GET /api/reports?window=
func (h *LedgerHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	window, err := reports.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, ok := openSession(w, r, h.sessions)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sess.Report(window))
}
