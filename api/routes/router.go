package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/deposit-ledger/api/controllers"
	ledgercontrollers "github.com/angelmondragon/deposit-ledger/api/controllers/ledger"
	ordercontrollers "github.com/angelmondragon/deposit-ledger/api/controllers/orders"
	refundcontrollers "github.com/angelmondragon/deposit-ledger/api/controllers/refunds"
	webhookcontrollers "github.com/angelmondragon/deposit-ledger/api/controllers/webhooks"
	"github.com/angelmondragon/deposit-ledger/api/middleware"
	"github.com/angelmondragon/deposit-ledger/internal/ledger"
	"github.com/angelmondragon/deposit-ledger/internal/orders"
	"github.com/angelmondragon/deposit-ledger/internal/refunds"
	"github.com/angelmondragon/deposit-ledger/pkg/config"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/metrics"
)

// RedisStore is the slice of the Redis client the HTTP layer uses.
type RedisStore interface {
	controllers.Pinger
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// StripeWebhookClient exposes the webhook signing configuration.
type StripeWebhookClient interface {
	SigningSecret() string
	IsLive() bool
}

// StripeEventGate dedupes provider events.
type StripeEventGate interface {
	Claim(ctx context.Context, eventID, eventType string, mode enums.ProviderMode) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

// AuditLister reads an entry's audit trail.
type AuditLister interface {
	ListByEntry(ctx context.Context, entryID uuid.UUID) ([]models.LedgerAuditEntry, error)
}

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	Gatherer prometheus.Gatherer
	Metrics  *metrics.LedgerMetrics

	DB    controllers.Pinger
	Redis RedisStore

	Ledger  ledger.Service
	Audit   AuditLister
	Refunds refunds.Service
	Orders  orders.Service

	StripeClient  StripeWebhookClient
	StripeWebhook webhookcontrollers.StripeWebhookService
	StripeGate    StripeEventGate
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	approvalPolicy := middleware.NewApprovalRateLimitPolicy(
		"approval",
		cfg.Ledger.ApprovalWindow,
		cfg.Ledger.ApprovalUserLimit,
		cfg.Ledger.ApprovalIPLimit,
	)
	limiter := middleware.ApprovalRateLimit(approvalPolicy, deps.Redis, logg)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, deps.StripeGate, logg, deps.Metrics))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Get(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.StaffRoleManager, enums.StaffRoleAdmin)).
					Put("/deposit", ordercontrollers.UpdateDeposit(deps.Orders, logg))
				r.Post("/payment-links", ordercontrollers.RegisterPaymentLink(deps.Orders, logg))

				r.Get("/ledger-entries", ledgercontrollers.ListOrderEntries(deps.Ledger, logg))
				r.Post("/ledger-entries", ledgercontrollers.AddEntry(deps.Ledger, logg))
				r.Get("/ledger-summary", ledgercontrollers.Summary(deps.Ledger, logg))
				r.Post("/ledger-summary/recalculate", ledgercontrollers.Recalculate(deps.Ledger, logg))

				r.With(limiter).Post("/refunds", refundcontrollers.Issue(deps.Refunds, logg))
				r.With(limiter).Post("/refunds/verify", refundcontrollers.Verify(deps.Refunds, logg))
			})
		})

		r.Route("/ledger-entries", func(r chi.Router) {
			r.Get("/", ledgercontrollers.ListAllEntries(deps.Ledger, logg))
			r.Get("/{entryId}", ledgercontrollers.GetEntry(deps.Ledger, logg))
			r.Get("/{entryId}/audit", ledgercontrollers.EntryAudit(deps.Ledger, deps.Audit, logg))
			r.Post("/{entryId}/void", ledgercontrollers.VoidEntry(deps.Ledger, logg))
			r.With(limiter).Post("/{entryId}/approve", ledgercontrollers.ApproveEntry(deps.Ledger, logg))
		})
	})

	return r
}
