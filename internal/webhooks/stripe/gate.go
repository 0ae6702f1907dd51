package stripewebhook

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

const maxStoredError = 1000

// Gate deduplicates provider events through the external_events table. The
// first insert of an event id wins; every later delivery is a duplicate,
// including retries of events that failed.
type Gate struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGate(db *gorm.DB) (*Gate, error) {
	if db == nil {
		return nil, errors.New("gate database is required")
	}
	return &Gate{db: db, now: time.Now}, nil
}

// Claim records the event as processing and reports whether this call created
// the record.
func (g *Gate) Claim(ctx context.Context, eventID, eventType string, mode enums.ProviderMode) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return false, errors.New("event id is required")
	}
	record := models.ExternalEvent{
		EventID:    eventID,
		EventType:  eventType,
		Status:     enums.ExternalEventStatusProcessing,
		Mode:       mode,
		ReceivedAt: g.now().UTC(),
	}
	res := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (g *Gate) MarkProcessed(ctx context.Context, eventID string) error {
	now := g.now().UTC()
	return g.finish(ctx, eventID, map[string]any{
		"status":       enums.ExternalEventStatusProcessed,
		"processed_at": now,
		"error":        nil,
	})
}

func (g *Gate) MarkFailed(ctx context.Context, eventID string, cause error) error {
	now := g.now().UTC()
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > maxStoredError {
		msg = msg[:maxStoredError]
	}
	return g.finish(ctx, eventID, map[string]any{
		"status":       enums.ExternalEventStatusFailed,
		"processed_at": now,
		"error":        msg,
	})
}

// Find returns the dedupe record for eventID.
func (g *Gate) Find(ctx context.Context, eventID string) (*models.ExternalEvent, error) {
	var record models.ExternalEvent
	if err := g.db.WithContext(ctx).Where("event_id = ?", eventID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (g *Gate) finish(ctx context.Context, eventID string, values map[string]any) error {
	res := g.db.WithContext(ctx).
		Model(&models.ExternalEvent{}).
		Where("event_id = ?", eventID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
