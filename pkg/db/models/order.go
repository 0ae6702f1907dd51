package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// Order is the slice of the sales order the ledger reads and writes.
type Order struct {
	ID                      uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber             string              `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerName            string              `gorm:"column:customer_name;not null"`
	Status                  enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'draft'"`
	PaymentStatus           enums.PaymentStatus `gorm:"column:payment_status;type:order_payment_status;not null;default:'pending'"`
	PaidAt                  *time.Time          `gorm:"column:paid_at"`
	DepositRequired         decimal.Decimal     `gorm:"column:deposit_required;type:numeric(12,2);not null"`
	OriginalDeposit         decimal.Decimal     `gorm:"column:original_deposit;type:numeric(12,2);not null"`
	StripePaymentIntentID   *string             `gorm:"column:stripe_payment_intent_id"`
	StripeCheckoutSessionID *string             `gorm:"column:stripe_checkout_session_id"`
	LastPaymentError        *string             `gorm:"column:last_payment_error"`
	LastPaymentErrorAt      *time.Time          `gorm:"column:last_payment_error_at"`
	LedgerSummary           OrderLedgerSummary  `gorm:"embedded;embeddedPrefix:ledger_"`
	CreatedAt               time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderLedgerSummary is a derived cache rebuilt in full by reconciliation.
type OrderLedgerSummary struct {
	DepositRequired    decimal.Decimal     `gorm:"column:deposit_required;type:numeric(12,2);not null;default:0"`
	OriginalDeposit    decimal.Decimal     `gorm:"column:original_deposit;type:numeric(12,2);not null;default:0"`
	DepositAdjustments decimal.Decimal     `gorm:"column:deposit_adjustments;type:numeric(12,2);not null;default:0"`
	TotalReceived      decimal.Decimal     `gorm:"column:total_received;type:numeric(12,2);not null;default:0"`
	TotalRefunded      decimal.Decimal     `gorm:"column:total_refunded;type:numeric(12,2);not null;default:0"`
	NetReceived        decimal.Decimal     `gorm:"column:net_received;type:numeric(12,2);not null;default:0"`
	Balance            decimal.Decimal     `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	BalanceStatus      enums.BalanceStatus `gorm:"column:balance_status;type:ledger_balance_status;not null;default:'pending'"`
	PendingReceived    decimal.Decimal     `gorm:"column:pending_received;type:numeric(12,2);not null;default:0"`
	PendingRefunds     decimal.Decimal     `gorm:"column:pending_refunds;type:numeric(12,2);not null;default:0"`
	EntryCount         int                 `gorm:"column:entry_count;not null;default:0"`
	LastEntryAt        *time.Time          `gorm:"column:last_entry_at"`
	CalculatedAt       *time.Time          `gorm:"column:calculated_at"`
}
