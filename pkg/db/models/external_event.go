package models

import (
	"time"

	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// ExternalEvent is the dedupe record for a payment provider webhook event.
type ExternalEvent struct {
	EventID     string                    `gorm:"column:event_id;primaryKey"`
	EventType   string                    `gorm:"column:event_type;not null"`
	Status      enums.ExternalEventStatus `gorm:"column:status;not null"`
	Mode        enums.ProviderMode        `gorm:"column:mode;not null"`
	ReceivedAt  time.Time                 `gorm:"column:received_at;not null"`
	ProcessedAt *time.Time                `gorm:"column:processed_at"`
	Error       *string                   `gorm:"column:error"`
}

func (ExternalEvent) TableName() string { return "external_events" }
