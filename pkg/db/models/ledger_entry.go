package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// LedgerEntry is one financial transaction against an order. Rows are never
// deleted; only Status (and its stamps) changes after insert.
type LedgerEntry struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
	OrderNumber       string                  `gorm:"column:order_number;not null"`
	PaymentNumber     string                  `gorm:"column:payment_number;not null;uniqueIndex"`
	TransactionType   enums.TransactionType   `gorm:"column:transaction_type;type:ledger_transaction_type;not null"`
	Amount            decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Method            enums.PaymentMethod     `gorm:"column:method;type:ledger_payment_method;not null"`
	Category          enums.LedgerCategory    `gorm:"column:category;type:ledger_category;not null"`
	Status            enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status;not null;default:'pending'"`
	ExternalPaymentID *string                 `gorm:"column:external_payment_id"`
	ExternalVerified  bool                    `gorm:"column:external_verified;not null;default:false"`
	ExternalEventID   *string                 `gorm:"column:external_event_id"`
	SourceEntryID     *uuid.UUID              `gorm:"column:source_entry_id;type:uuid"`
	ProofFile         *string                 `gorm:"column:proof_file"`
	Notes             *string                 `gorm:"column:notes"`
	BalanceAfter      decimal.Decimal         `gorm:"column:balance_after;type:numeric(12,2);not null"`
	DepositAtTime     decimal.Decimal         `gorm:"column:deposit_at_time;type:numeric(12,2);not null"`
	CreatedBy         string                  `gorm:"column:created_by;not null"`
	ApprovedBy        *string                 `gorm:"column:approved_by"`
	ApprovedAt        *time.Time              `gorm:"column:approved_at"`
	VerifiedAt        *time.Time              `gorm:"column:verified_at"`
	VoidedBy          *string                 `gorm:"column:voided_by"`
	VoidedAt          *time.Time              `gorm:"column:voided_at"`
	VoidReason        *string                 `gorm:"column:void_reason"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// SignedAmount is the amount as it moves netReceived: payments positive,
// refunds negative, deposit adjustments zero.
func (e LedgerEntry) SignedAmount() decimal.Decimal {
	switch e.TransactionType.Sign() {
	case 1:
		return e.Amount
	case -1:
		return e.Amount.Neg()
	default:
		return decimal.Zero
	}
}
