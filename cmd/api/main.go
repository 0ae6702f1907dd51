package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/deposit-ledger/api/routes"
	"github.com/angelmondragon/deposit-ledger/internal/approvals"
	"github.com/angelmondragon/deposit-ledger/internal/audit"
	"github.com/angelmondragon/deposit-ledger/internal/ledger"
	"github.com/angelmondragon/deposit-ledger/internal/mirror"
	"github.com/angelmondragon/deposit-ledger/internal/orders"
	"github.com/angelmondragon/deposit-ledger/internal/refunds"
	"github.com/angelmondragon/deposit-ledger/internal/sequence"
	stripewebhook "github.com/angelmondragon/deposit-ledger/internal/webhooks/stripe"
	"github.com/angelmondragon/deposit-ledger/pkg/config"
	"github.com/angelmondragon/deposit-ledger/pkg/db"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/metrics"
	"github.com/angelmondragon/deposit-ledger/pkg/migrate"
	"github.com/angelmondragon/deposit-ledger/pkg/pubsub"
	"github.com/angelmondragon/deposit-ledger/pkg/redis"
	pkgstripe "github.com/angelmondragon/deposit-ledger/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	closers = append(closers, redisClient.Close)

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	payments := pkgstripe.NewPayments(stripeClient)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	var publisher mirror.Publisher = mirror.Noop{}
	if cfg.PubSub.MirrorEnabled(cfg.GCP) {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		closers = append(closers, psClient.Close)
		publisher = mirror.NewPubSubMirror(psClient.MirrorPublisher(), logg, ledgerMetrics)
	} else {
		logg.Warn(ctx, "ledger mirror disabled; no pubsub topic configured")
	}

	hashes, err := cfg.Ledger.ApprovalCodeHashes()
	if err != nil {
		return err
	}
	verifier, err := approvals.NewCodeVerifier(hashes, logg)
	if err != nil {
		return err
	}

	seq, err := sequence.NewGenerator(dbClient.DB())
	if err != nil {
		return err
	}
	auditWriter, err := audit.NewWriter(dbClient.DB(), logg, ledgerMetrics)
	if err != nil {
		return err
	}

	entryRepo := ledger.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())

	reconciler, err := ledger.NewReconciler(ledger.ReconcilerParams{
		Entries:           entryRepo,
		Orders:            orderRepo,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           ledgerMetrics,
	})
	if err != nil {
		return err
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:              entryRepo,
		Orders:            orderRepo,
		Sequence:          seq,
		Reconciler:        reconciler,
		TransactionRunner: dbClient,
		Audit:             auditWriter,
		Mirror:            publisher,
		Approvals:         verifier,
		Payments:          payments,
		Logger:            logg,
		Metrics:           ledgerMetrics,
		PaymentCounter:    cfg.Ledger.PaymentCounter,
	})
	if err != nil {
		return err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:              orderRepo,
		Sequence:          seq,
		Recomputer:        ledgerService,
		TransactionRunner: dbClient,
		OrderCounter:      cfg.Ledger.OrderCounter,
	})
	if err != nil {
		return err
	}

	refundService, err := refunds.NewService(refunds.ServiceParams{
		Ledger:    ledgerService,
		Entries:   entryRepo,
		Orders:    orderRepo,
		Stripe:    payments,
		Approvals: verifier,
		Logger:    logg,
		Metrics:   ledgerMetrics,
	})
	if err != nil {
		return err
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger: ledgerService,
		Orders: orderRepo,
		Logger: logg,
	})
	if err != nil {
		return err
	}
	gate, err := stripewebhook.NewGate(dbClient.DB())
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		Gatherer:      registry,
		Metrics:       ledgerMetrics,
		DB:            dbClient,
		Redis:         redisClient,
		Ledger:        ledgerService,
		Audit:         auditWriter,
		Refunds:       refundService,
		Orders:        orderService,
		StripeClient:  stripeClient,
		StripeWebhook: webhookService,
		StripeGate:    gate,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        server.Addr,
		"stripe_mode": string(stripeClient.Mode()),
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
