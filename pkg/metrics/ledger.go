package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records ledger, webhook and refund activity.
type LedgerMetrics struct {
	webhookEvents    *prometheus.CounterVec
	recomputeLatency *prometheus.HistogramVec
	entriesCreated   *prometheus.CounterVec
	auditFailures    *prometheus.CounterVec
	refunds          *prometheus.CounterVec
	mirrorFailures   prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Payment provider webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	recomputeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_recompute_duration_seconds",
		Help:    "Duration of order ledger summary recomputation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	entriesCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_created_total",
		Help: "Ledger entries created by transaction type and method.",
	}, []string{"transaction_type", "method"})
	auditFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_audit_write_failures_total",
		Help: "Audit records that could not be written.",
	}, []string{"action"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refund_allocations_total",
		Help: "Refund allocations by outcome.",
	}, []string{"outcome"})
	mirrorFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mirror_publish_failures_total",
		Help: "Ledger mirror messages that failed to publish.",
	})
	reg.MustRegister(webhookEvents, recomputeLatency, entriesCreated, auditFailures, refunds, mirrorFailures)
	return &LedgerMetrics{
		webhookEvents:    webhookEvents,
		recomputeLatency: recomputeLatency,
		entriesCreated:   entriesCreated,
		auditFailures:    auditFailures,
		refunds:          refunds,
		mirrorFailures:   mirrorFailures,
	}
}

// IncWebhookEvent counts one webhook event outcome (processed, failed,
// duplicate, ignored, rejected).
func (m *LedgerMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveRecompute records how long a summary rebuild took.
func (m *LedgerMetrics) ObserveRecompute(duration time.Duration, err error) {
	if m == nil || m.recomputeLatency == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.recomputeLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *LedgerMetrics) IncEntryCreated(transactionType, method string) {
	if m == nil || m.entriesCreated == nil {
		return
	}
	m.entriesCreated.WithLabelValues(normalizeLabel(transactionType), normalizeLabel(method)).Inc()
}

func (m *LedgerMetrics) IncAuditFailure(action string) {
	if m == nil || m.auditFailures == nil {
		return
	}
	m.auditFailures.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncRefund counts refund allocations: succeeded, failed, skipped or manual.
func (m *LedgerMetrics) IncRefund(outcome string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *LedgerMetrics) IncMirrorFailure() {
	if m == nil || m.mirrorFailures == nil {
		return
	}
	m.mirrorFailures.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
