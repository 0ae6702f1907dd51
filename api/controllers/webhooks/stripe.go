package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/deposit-ledger/api/responses"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/metrics"
)

const maxWebhookBody = 1 << 20

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeEventGate interface {
	Claim(ctx context.Context, eventID, eventType string, mode enums.ProviderMode) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, cause error) error
}

type stripeClient interface {
	SigningSecret() string
	IsLive() bool
}

type webhookAck struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate"`
}

// StripeWebhook verifies, deduplicates and dispatches Stripe payment events.
func StripeWebhook(svc StripeWebhookService, client stripeClient, gate stripeEventGate, logg *logger.Logger, m *metrics.LedgerMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}
		if gate == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event gate unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := decodeEvent(ctx, payload, r.Header.Get("Stripe-Signature"), client, logg)
		if err != nil {
			m.IncWebhookEvent("unknown", "rejected")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventType := string(event.Type)
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID, eventType)
		}
		if event.Livemode != client.IsLive() {
			m.IncWebhookEvent(eventType, "mode_mismatch")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event mode does not match configured stripe mode"))
			return
		}

		isNew, err := gate.Claim(ctx, event.ID, eventType, enums.ProviderModeFromLive(event.Livemode))
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "webhook.claim_failed", err)
			}
			m.IncWebhookEvent(eventType, "duplicate")
			responses.WriteSuccess(w, webhookAck{Received: true, Duplicate: true})
			return
		}
		if !isNew {
			if logg != nil {
				logg.Info(ctx, "webhook.duplicate")
			}
			m.IncWebhookEvent(eventType, "duplicate")
			responses.WriteSuccess(w, webhookAck{Received: true, Duplicate: true})
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			if markErr := gate.MarkFailed(ctx, event.ID, err); markErr != nil && logg != nil {
				logg.Error(ctx, "webhook.mark_failed_failed", markErr)
			}
			m.IncWebhookEvent(eventType, "failed")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "process stripe event"))
			return
		}

		if err := gate.MarkProcessed(ctx, event.ID); err != nil && logg != nil {
			logg.Error(ctx, "webhook.mark_processed_failed", err)
		}
		if logg != nil {
			logg.Info(ctx, "webhook.processed")
		}
		m.IncWebhookEvent(eventType, "processed")
		responses.WriteSuccess(w, webhookAck{Received: true})
	}
}

// decodeEvent verifies the signature when a secret is configured. Without one,
// test mode accepts the payload unverified and live mode refuses to run.
func decodeEvent(ctx context.Context, payload []byte, sigHeader string, client stripeClient, logg *logger.Logger) (*stripe.Event, error) {
	secret := strings.TrimSpace(client.SigningSecret())
	if secret == "" {
		if client.IsLive() {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook secret missing in live mode")
		}
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stripe event")
		}
		if event.ID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event id missing")
		}
		if logg != nil {
			logg.Warn(ctx, "webhook.signature_unverified: no signing secret configured in test mode")
		}
		return &event, nil
	}

	if sigHeader == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "verify signature")
	}
	return &event, nil
}
