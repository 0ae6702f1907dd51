package stripe

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"
)

// RefundRequest describes one refund against a PaymentIntent.
type RefundRequest struct {
	PaymentIntentID string
	AmountCents     int64
	Reason          string
	IdempotencyKey  string
	Metadata        map[string]string
}

// Payments exposes the PaymentIntent and Refund calls the ledger makes.
type Payments struct {
	client *Client
}

// NewPayments wraps the configured client.
func NewPayments(client *Client) *Payments {
	return &Payments{client: client}
}

func (p *Payments) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if !p.client.HasAPIKey() {
		return nil, errAPIKeyRequired
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (p *Payments) CreateRefund(ctx context.Context, req RefundRequest) (*stripe.Refund, error) {
	if !p.client.HasAPIKey() {
		return nil, errAPIKeyRequired
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(req.AmountCents),
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		params.AddMetadata("reason", reason)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx
	return refund.New(params)
}

func (p *Payments) GetRefund(ctx context.Context, id string) (*stripe.Refund, error) {
	if !p.client.HasAPIKey() {
		return nil, errAPIKeyRequired
	}
	params := &stripe.RefundParams{}
	params.AddExpand("payment_intent")
	params.Context = ctx
	return refund.Get(id, params)
}

// ToCents converts a two-decimal USD amount into Stripe's minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents converts Stripe minor units into a two-decimal USD amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}
