package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// Repository defines the order persistence the ledger relies on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentLink(ctx context.Context, paymentLinkID string) (*models.Order, error)
	CreatePaymentLink(ctx context.Context, link *models.PaymentLink) error
	UpdateDepositRequired(ctx context.Context, id uuid.UUID, deposit decimal.Decimal) error
	SaveLedgerSummary(ctx context.Context, id uuid.UUID, summary models.OrderLedgerSummary) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, paidAt *time.Time) error
	SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) error
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error
	RecordPaymentError(ctx context.Context, id uuid.UUID, message string, at time.Time) error
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
}

// SummaryRecomputer rebuilds an order's ledger summary after its inputs change.
type SummaryRecomputer interface {
	Recompute(ctx context.Context, orderID uuid.UUID) (*models.OrderLedgerSummary, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
