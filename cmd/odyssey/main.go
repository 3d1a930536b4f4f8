package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-books/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-books/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-books/internal/app"
	"github.com/odyssey-erp/odyssey-books/internal/audit"
	"github.com/odyssey-erp/odyssey-books/internal/auth"
	"github.com/odyssey-erp/odyssey-books/internal/banking"
	"github.com/odyssey-erp/odyssey-books/internal/contacts"
	"github.com/odyssey-erp/odyssey-books/internal/documents"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/payments"
	"github.com/odyssey-erp/odyssey-books/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/reconciliation"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "api")

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGLockTimeout)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports served uncached", slog.Any("error", err))
		_ = redisClient.Close()
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL, logger)

	authService := auth.NewService(auth.NewRepository(dbpool))

	accountsService := accounts.NewService(accounts.NewRepository(dbpool))
	journalsService := journals.NewService(journals.NewRepository(dbpool), auditLogger, reportCache, metrics)
	periodsService := periods.NewService(periods.NewRepository(dbpool), auditLogger, reportCache, metrics)
	reportsService := reports.NewService(reports.NewRepository(dbpool), reportCache, cfg.CurrencyCode)
	contactsService := contacts.NewService(contacts.NewRepository(dbpool))
	documentsService := documents.NewService(documents.NewRepository(dbpool), journalsService, auditLogger, reportCache, metrics)
	paymentsService := payments.NewService(payments.NewRepository(dbpool), journalsService, auditLogger, reportCache, metrics)
	bankingService := banking.NewService(banking.NewRepository(dbpool))
	reconciliationService := reconciliation.NewService(reconciliation.NewRepository(dbpool), auditLogger, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:                logger,
		Config:                cfg,
		Authenticate:          auth.Middleware(authService, logger),
		Idempotency:           idempotencyStore,
		Metrics:               metrics,
		AccountsHandler:       accounts.NewHandler(logger, accountsService),
		PeriodsHandler:        periods.NewHandler(logger, periodsService),
		JournalsHandler:       journals.NewHandler(logger, journalsService),
		ReportsHandler:        reports.NewHandler(logger, reportsService),
		ContactsHandler:       contacts.NewHandler(logger, contactsService),
		InvoicesHandler:       documents.NewHandler(logger, documentsService, documents.KindInvoice),
		BillsHandler:          documents.NewHandler(logger, documentsService, documents.KindBill),
		PaymentsHandler:       payments.NewHandler(logger, paymentsService, documents.KindInvoice),
		BillPaymentsHandler:   payments.NewHandler(logger, paymentsService, documents.KindBill),
		BankingHandler:        banking.NewHandler(logger, bankingService),
		ReconciliationHandler: reconciliation.NewHandler(logger, reconciliationService),
		AuditHandler:          audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool))),
		JobHandler:            jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
