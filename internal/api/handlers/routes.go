package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/statement-importer/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the endpoint handlers served by the API.
type Handlers struct {
	Imports      *ImportsHandler
	Transactions *TransactionsHandler
	Categories   *CategoriesHandler
	Jobs         *JobsHandler // nil disables the jobs endpoints
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(h Handlers, defaultUser string, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/transactions/import", h.Imports.Import)
	mux.HandleFunc("POST /api/imports", h.Imports.EnqueueImport)
	mux.HandleFunc("GET /api/transactions", h.Transactions.ListTransactions)
	mux.HandleFunc("GET /api/categories", h.Categories.ListCategories)

	if h.Jobs != nil {
		mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
		mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			h.Jobs.GetJob(w, r, r.PathValue("id"))
		})
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(defaultUser)(mux),
				),
			),
		),
	)
}
