package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-books/internal/audit"
	"github.com/odyssey-erp/odyssey-books/internal/banking"
	"github.com/odyssey-erp/odyssey-books/internal/contacts"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/payments"
	"github.com/odyssey-erp/odyssey-books/internal/reconciliation"
	"github.com/odyssey-erp/odyssey-books/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	// Authenticate attaches the company scope; requests without one never
	// reach the ledger handlers.
	Authenticate func(http.Handler) http.Handler
	Idempotency  IdempotencyStore
	Metrics      *observability.Metrics

	AccountsHandler       *accounts.Handler
	PeriodsHandler        *periods.Handler
	JournalsHandler       *journals.Handler
	ReportsHandler        *reports.Handler
	ContactsHandler       *contacts.Handler
	InvoicesHandler       *documents.Handler
	BillsHandler          *documents.Handler
	PaymentsHandler       *payments.Handler
	BillPaymentsHandler   *payments.Handler
	BankingHandler        *banking.Handler
	ReconciliationHandler *reconciliation.Handler
	AuditHandler          *audit.Handler
	JobHandler            *jobs.Handler
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	perMinute := 0
	if params.Config != nil {
		perMinute = params.Config.RateLimitPerMinute
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.Authenticate != nil {
			r.Use(params.Authenticate)
		}
		r.Use(RateLimit(perMinute))
		r.Use(Idempotency(params.Idempotency, params.Logger))

		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.PeriodsHandler != nil {
			r.Route("/periods", params.PeriodsHandler.MountRoutes)
		}
		if params.JournalsHandler != nil {
			r.Route("/journal-entries", params.JournalsHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.ContactsHandler != nil {
			r.Route("/contacts", params.ContactsHandler.MountRoutes)
		}
		if params.InvoicesHandler != nil {
			r.Route("/invoices", params.InvoicesHandler.MountRoutes)
		}
		if params.BillsHandler != nil {
			r.Route("/bills", params.BillsHandler.MountRoutes)
		}
		if params.PaymentsHandler != nil {
			r.Route("/payments", params.PaymentsHandler.MountRoutes)
		}
		if params.BillPaymentsHandler != nil {
			r.Route("/bill-payments", params.BillPaymentsHandler.MountRoutes)
		}
		if params.BankingHandler != nil {
			r.Route("/bank-accounts", params.BankingHandler.MountRoutes)
			r.Route("/bank-transactions", params.BankingHandler.MountTransactionRoutes)
		}
		if params.ReconciliationHandler != nil {
			r.Route("/reconciliations", params.ReconciliationHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit-logs", params.AuditHandler.MountRoutes)
		}
	})

	return r
}

