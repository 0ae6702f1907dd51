// Package mirror publishes ledger changes for the spreadsheet exporter.
// Publishing is best-effort: the ledger never waits on or fails because of it.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/metrics"
)

const (
	EventEntryCreated   = "ledger.entry_created"
	EventEntryUpdated   = "ledger.entry_updated"
	EventSummaryChanged = "ledger.summary_changed"

	envelopeVersion       = 1
	defaultPublishTimeout = 5 * time.Second
)

// Publisher is what the ledger calls after a committed change.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Event is one mirrored ledger change.
type Event struct {
	Type    string
	OrderID uuid.UUID
	Entry   *models.LedgerEntry
	Summary *models.OrderLedgerSummary
}

// Envelope is the JSON body written to the topic.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OrderID    string          `json:"orderId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

type entryPayload struct {
	ID                string  `json:"id"`
	PaymentNumber     string  `json:"paymentNumber"`
	OrderNumber       string  `json:"orderNumber"`
	TransactionType   string  `json:"transactionType"`
	Amount            string  `json:"amount"`
	Method            string  `json:"method"`
	Category          string  `json:"category"`
	Status            string  `json:"status"`
	ExternalPaymentID *string `json:"externalPaymentId,omitempty"`
	CreatedBy         string  `json:"createdBy"`
	CreatedAt         string  `json:"createdAt"`
}

type summaryPayload struct {
	DepositRequired string `json:"depositRequired"`
	NetReceived     string `json:"netReceived"`
	Balance         string `json:"balance"`
	BalanceStatus   string `json:"balanceStatus"`
	EntryCount      int    `json:"entryCount"`
}

type payload struct {
	Entry   *entryPayload   `json:"entry,omitempty"`
	Summary *summaryPayload `json:"summary,omitempty"`
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubMirror writes events to a Pub/Sub topic.
type PubSubMirror struct {
	pub     publisher
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
	timeout time.Duration
}

// NewPubSubMirror wraps a topic publisher. A nil publisher yields a Noop.
func NewPubSubMirror(p *gcppubsub.Publisher, logg *logger.Logger, m *metrics.LedgerMetrics) Publisher {
	if p == nil {
		return Noop{}
	}
	return newMirror(&gcpPublisher{Publisher: p}, logg, m)
}

func newMirror(pub publisher, logg *logger.Logger, m *metrics.LedgerMetrics) *PubSubMirror {
	return &PubSubMirror{
		pub:     pub,
		logg:    logg,
		metrics: m,
		now:     time.Now,
		timeout: defaultPublishTimeout,
	}
}

func (m *PubSubMirror) Publish(ctx context.Context, event Event) {
	msg, err := m.message(event)
	if err == nil {
		err = m.send(ctx, msg)
	}
	if err == nil {
		return
	}
	m.metrics.IncMirrorFailure()
	if m.logg != nil {
		logCtx := m.logg.WithFields(ctx, map[string]any{
			"event_type": event.Type,
			"order_id":   event.OrderID.String(),
		})
		m.logg.Warn(logCtx, "mirror.publish_failed: "+err.Error())
	}
}

func (m *PubSubMirror) send(ctx context.Context, msg *gcppubsub.Message) error {
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	result := m.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	_, err := result.Get(publishCtx)
	return err
}

func (m *PubSubMirror) message(event Event) (*gcppubsub.Message, error) {
	data, err := json.Marshal(buildPayload(event))
	if err != nil {
		return nil, err
	}
	envelope := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  event.Type,
		OrderID:    event.OrderID.String(),
		OccurredAt: m.now().UTC(),
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	return &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":   envelope.EventID,
			"event_type": event.Type,
			"order_id":   envelope.OrderID,
		},
	}, nil
}

func buildPayload(event Event) payload {
	out := payload{}
	if e := event.Entry; e != nil {
		out.Entry = &entryPayload{
			ID:                e.ID.String(),
			PaymentNumber:     e.PaymentNumber,
			OrderNumber:       e.OrderNumber,
			TransactionType:   e.TransactionType.String(),
			Amount:            e.Amount.StringFixed(2),
			Method:            e.Method.String(),
			Category:          e.Category.String(),
			Status:            e.Status.String(),
			ExternalPaymentID: e.ExternalPaymentID,
			CreatedBy:         e.CreatedBy,
			CreatedAt:         e.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	if s := event.Summary; s != nil {
		out.Summary = &summaryPayload{
			DepositRequired: s.DepositRequired.StringFixed(2),
			NetReceived:     s.NetReceived.StringFixed(2),
			Balance:         s.Balance.StringFixed(2),
			BalanceStatus:   s.BalanceStatus.String(),
			EntryCount:      s.EntryCount,
		}
	}
	return out
}

// Noop discards events; used when no mirror topic is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
