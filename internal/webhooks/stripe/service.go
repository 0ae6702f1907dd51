package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/deposit-ledger/internal/ledger"
	"github.com/angelmondragon/deposit-ledger/internal/orders"
	"github.com/angelmondragon/deposit-ledger/pkg/db"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	pkgstripe "github.com/angelmondragon/deposit-ledger/pkg/stripe"
)

// WebhookActor is recorded as created_by on entries the webhook writes.
const WebhookActor = "stripe_webhook"

const metadataOrderID = "order_id"

// LedgerWriter is the slice of the ledger service webhook dispatch needs.
type LedgerWriter interface {
	CreateEntry(ctx context.Context, input ledger.CreateEntryInput) (*ledger.EntryResult, error)
	FindByExternalPaymentID(ctx context.Context, transactionType enums.TransactionType, externalID string) (*models.LedgerEntry, error)
	HasConfirmedPayment(ctx context.Context, orderID uuid.UUID) (bool, error)
	Recompute(ctx context.Context, orderID uuid.UUID) (*models.OrderLedgerSummary, error)
}

type ServiceParams struct {
	Ledger LedgerWriter
	Orders orders.Repository
	Logger *logger.Logger
}

// Service applies verified, deduplicated Stripe events to the ledger.
type Service struct {
	ledger LedgerWriter
	orders orders.Repository
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		ledger: params.Ledger,
		orders: params.Orders,
		logg:   params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithEventID(ctx, event.ID, string(event.Type))

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return s.handlePaymentSucceeded(ctx, event.ID, &pi)
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.handleCheckoutCompleted(ctx, event.ID, &session)
	case stripe.EventTypePaymentIntentPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		return s.handlePaymentFailed(ctx, event, &pi)
	case stripe.EventTypeChargeRefunded:
		s.logg.Info(s.logg.WithField(ctx, "charge_id", event.GetObjectValue("id")), "webhook.charge_refunded")
		return nil
	case stripe.EventTypeChargeDisputeCreated:
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"dispute_id": event.GetObjectValue("id"),
			"charge_id":  event.GetObjectValue("charge"),
			"amount":     event.GetObjectValue("amount"),
		}), "webhook.dispute_created: manual handling required")
		return nil
	default:
		s.logg.Debug(ctx, "webhook.ignored")
		return nil
	}
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, eventID string, pi *stripe.PaymentIntent) error {
	order, err := s.resolveOrder(ctx, pi.Metadata[metadataOrderID], "", "")
	if err != nil || order == nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	cents := pi.AmountReceived
	if cents == 0 {
		cents = pi.Amount
	}
	if err := s.recordProviderPayment(ctx, order, eventID, pi.ID, pkgstripe.FromCents(cents)); err != nil {
		return err
	}
	if err := s.orders.SetPaymentIntent(ctx, order.ID, pi.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment intent")
	}

	advanced, err := s.orders.AdvanceStatus(ctx, order.ID, enums.OrderStatusSigned, enums.OrderStatusReadyForManufacturer)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order status")
	}
	if advanced {
		s.logg.Info(ctx, "webhook.order_ready_for_manufacturer")
	}
	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, eventID string, session *stripe.CheckoutSession) error {
	linkID := ""
	if session.PaymentLink != nil {
		linkID = session.PaymentLink.ID
	}
	order, err := s.resolveOrder(ctx, session.Metadata[metadataOrderID], session.ClientReferenceID, linkID)
	if err != nil || order == nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if err := s.orders.SetCheckoutSession(ctx, order.ID, session.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout session")
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid || session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		s.logg.Info(s.logg.WithField(ctx, "payment_status", string(session.PaymentStatus)), "webhook.checkout_not_paid")
		return nil
	}

	piID := session.PaymentIntent.ID
	if err := s.recordProviderPayment(ctx, order, eventID, piID, pkgstripe.FromCents(session.AmountTotal)); err != nil {
		return err
	}
	if err := s.orders.SetPaymentIntent(ctx, order.ID, piID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment intent")
	}
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *stripe.Event, pi *stripe.PaymentIntent) error {
	order, err := s.resolveOrder(ctx, pi.Metadata[metadataOrderID], "", "")
	if err != nil || order == nil {
		return err
	}
	msg := "payment failed"
	if pi.LastPaymentError != nil && strings.TrimSpace(pi.LastPaymentError.Msg) != "" {
		msg = pi.LastPaymentError.Msg
	}
	at := eventTime(event)
	if err := s.orders.RecordPaymentError(ctx, order.ID, msg, at); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment error")
	}
	s.logg.Warn(s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"payment_intent_id": pi.ID,
		"reason":            msg,
	}), "webhook.payment_failed")
	return nil
}

// recordProviderPayment writes the verified card payment for paymentIntentID
// unless the ledger already has it. A concurrent writer winning the unique
// index counts as already recorded.
func (s *Service) recordProviderPayment(ctx context.Context, order *models.Order, eventID, paymentIntentID string, amount decimal.Decimal) error {
	if strings.TrimSpace(paymentIntentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	logCtx := s.logg.WithField(ctx, "payment_intent_id", paymentIntentID)

	existing, err := s.ledger.FindByExternalPaymentID(ctx, enums.TransactionTypePayment, paymentIntentID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.logg.Info(s.logg.WithEntryID(logCtx, existing.ID.String()), "webhook.payment_already_recorded")
		_, err := s.ledger.Recompute(ctx, order.ID)
		return err
	}

	category := enums.LedgerCategoryInitialDeposit
	confirmed, err := s.ledger.HasConfirmedPayment(ctx, order.ID)
	if err != nil {
		return err
	}
	if confirmed {
		category = enums.LedgerCategoryAdditionalDeposit
	}

	piID := paymentIntentID
	evID := eventID
	result, err := s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		OrderID:           order.ID,
		TransactionType:   enums.TransactionTypePayment,
		Amount:            amount,
		Method:            enums.PaymentMethodProviderCharge,
		Category:          category,
		Status:            enums.LedgerEntryStatusVerified,
		ExternalPaymentID: &piID,
		ExternalVerified:  true,
		ExternalEventID:   &evID,
		CreatedBy:         WebhookActor,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.logg.Info(logCtx, "webhook.payment_already_recorded")
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithEntryID(logCtx, result.Entry.ID.String()), map[string]any{
		"amount":   amount.StringFixed(2),
		"category": category.String(),
	}), "webhook.payment_recorded")
	return nil
}

// resolveOrder finds the order an event refers to. Events that cannot be tied
// to an order are acknowledged and skipped with a nil order.
func (s *Service) resolveOrder(ctx context.Context, metadataID, clientReference, paymentLinkID string) (*models.Order, error) {
	for _, raw := range []string{metadataID, clientReference} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "order_ref", raw), "webhook.order_ref_invalid")
			continue
		}
		order, err := s.orders.FindByID(ctx, id)
		if err == nil {
			return order, nil
		}
		if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
	}

	if link := strings.TrimSpace(paymentLinkID); link != "" {
		order, err := s.orders.FindByPaymentLink(ctx, link)
		if err == nil {
			return order, nil
		}
		if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment link")
		}
	}

	s.logg.Warn(ctx, "webhook.order_not_found")
	return nil, nil
}

func eventTime(event *stripe.Event) time.Time {
	if event != nil && event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return time.Now().UTC()
}
