package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// LedgerAuditEntry is an append-only record of one ledger entry transition.
type LedgerAuditEntry struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	EntryID         uuid.UUID                `gorm:"column:entry_id;type:uuid;not null"`
	OrderID         uuid.UUID                `gorm:"column:order_id;type:uuid;not null"`
	Action          enums.AuditAction        `gorm:"column:action;type:ledger_audit_action;not null"`
	PreviousStatus  *enums.LedgerEntryStatus `gorm:"column:previous_status"`
	NewStatus       enums.LedgerEntryStatus  `gorm:"column:new_status;not null"`
	UserID          string                   `gorm:"column:user_id;not null"`
	ExternalEventID *string                  `gorm:"column:external_event_id"`
	Notes           *string                  `gorm:"column:notes"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerAuditEntry) TableName() string { return "ledger_audit_log" }

func (a *LedgerAuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
