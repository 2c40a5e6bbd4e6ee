// Package api assembles the HTTP server: the middleware chain and the
// routes of every handler.
package api

import (
	"net/http"

	"github.com/dvloznov/gastosmart/internal/api/handlers"
	"github.com/dvloznov/gastosmart/internal/api/middleware"
	"github.com/dvloznov/gastosmart/internal/blobstore"
	"github.com/dvloznov/gastosmart/internal/currency"
	"github.com/dvloznov/gastosmart/internal/jobs"
	"github.com/dvloznov/gastosmart/internal/lifecycle"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Deps are the collaborators the routes are served from. Assistant may be
// nil when AI is disabled.
type Deps struct {
	Sessions  handlers.Sessions
	Service   *lifecycle.Service
	Rates     *currency.Table
	Blobs     blobstore.Store
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	Assistant handlers.Assistant

	AllowedOrigins []string
	MaxUploadBytes int64
	// UploadLimit throttles receipt uploads across all users; nil means
	// no limit.
	UploadLimit *rate.Limiter
}

// NewRouter builds the API handler.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	accounts := handlers.NewAccountsHandler(deps.Sessions, deps.Service)
	transactions := handlers.NewTransactionsHandler(deps.Sessions, deps.Service)
	ledger := handlers.NewLedgerHandler(deps.Sessions, deps.Rates)
	receipts := handlers.NewReceiptsHandler(deps.Sessions, deps.Blobs, deps.Publisher, deps.Jobs, deps.MaxUploadBytes)
	assistant := handlers.NewAdvisorHandler(deps.Assistant)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(origins))

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth)

		r.Get("/accounts", accounts.ListAccounts)
		r.Post("/accounts", accounts.CreateAccount)
		r.Patch("/accounts/{id}", accounts.UpdateAccount)
		r.Delete("/accounts/{id}", accounts.DeleteAccount)

		r.Get("/transactions", transactions.ListTransactions)
		r.Post("/transactions", transactions.CreateTransaction)
		r.Patch("/transactions/{id}", transactions.UpdateTransaction)
		r.Delete("/transactions/{id}", transactions.DeleteTransaction)

		r.Get("/rates", ledger.GetRates)
		r.Put("/rates", ledger.UpdateRates)
		r.Get("/dashboard", ledger.GetDashboard)
		r.Get("/reports", ledger.GetReport)

		r.Group(func(r chi.Router) {
			if deps.UploadLimit != nil {
				r.Use(middleware.RateLimit(deps.UploadLimit))
			}
			r.Post("/receipts", receipts.UploadReceipt)
		})
		r.Get("/jobs", receipts.ListJobs)
		r.Get("/jobs/{id}", receipts.GetJob)
		r.Post("/drafts/merge", receipts.MergeDraft)

		r.Post("/chat", assistant.Chat)
		r.Post("/search", assistant.Search)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
