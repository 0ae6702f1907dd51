package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentLink remembers which order a hosted Stripe payment link was issued for.
type PaymentLink struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	StripePaymentLinkID string          `gorm:"column:stripe_payment_link_id;not null;uniqueIndex"`
	Amount              decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedBy           string          `gorm:"column:created_by;not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentLink) TableName() string { return "payment_links" }

func (p *PaymentLink) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
