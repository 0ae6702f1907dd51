package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// CreateOrderInput is the minimum an order needs before money can be recorded against it.
type CreateOrderInput struct {
	CustomerName    string            `json:"customer_name" validate:"required"`
	DepositRequired decimal.Decimal   `json:"deposit_required"`
	Status          enums.OrderStatus `json:"status,omitempty"`
}

// RegisterPaymentLinkInput ties a hosted Stripe payment link to an order.
type RegisterPaymentLinkInput struct {
	OrderID       uuid.UUID       `json:"-"`
	PaymentLinkID string          `json:"payment_link_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedBy     string          `json:"-"`
}

// OrderDTO is the order representation returned by the API.
type OrderDTO struct {
	ID                      uuid.UUID           `json:"id"`
	OrderNumber             string              `json:"order_number"`
	CustomerName            string              `json:"customer_name"`
	Status                  enums.OrderStatus   `json:"status"`
	PaymentStatus           enums.PaymentStatus `json:"payment_status"`
	PaidAt                  *time.Time          `json:"paid_at,omitempty"`
	DepositRequired         decimal.Decimal     `json:"deposit_required"`
	OriginalDeposit         decimal.Decimal     `json:"original_deposit"`
	StripePaymentIntentID   *string             `json:"stripe_payment_intent_id,omitempty"`
	StripeCheckoutSessionID *string             `json:"stripe_checkout_session_id,omitempty"`
	LastPaymentError        *string             `json:"last_payment_error,omitempty"`
	LastPaymentErrorAt      *time.Time          `json:"last_payment_error_at,omitempty"`
	CreatedAt               time.Time           `json:"created_at"`
	UpdatedAt               time.Time           `json:"updated_at"`
}

// NewOrderDTO maps a persisted order onto its API shape.
func NewOrderDTO(order *models.Order) OrderDTO {
	return OrderDTO{
		ID:                      order.ID,
		OrderNumber:             order.OrderNumber,
		CustomerName:            order.CustomerName,
		Status:                  order.Status,
		PaymentStatus:           order.PaymentStatus,
		PaidAt:                  order.PaidAt,
		DepositRequired:         order.DepositRequired,
		OriginalDeposit:         order.OriginalDeposit,
		StripePaymentIntentID:   order.StripePaymentIntentID,
		StripeCheckoutSessionID: order.StripeCheckoutSessionID,
		LastPaymentError:        order.LastPaymentError,
		LastPaymentErrorAt:      order.LastPaymentErrorAt,
		CreatedAt:               order.CreatedAt,
		UpdatedAt:               order.UpdatedAt,
	}
}
