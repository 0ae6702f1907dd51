// Package audit appends ledger status transitions to the audit log.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/metrics"
)

// Recorder accepts audit records. Implementations never fail the caller.
type Recorder interface {
	Record(ctx context.Context, input RecordInput)
}

// RecordInput describes one audited ledger transition.
type RecordInput struct {
	EntryID         uuid.UUID
	OrderID         uuid.UUID
	Action          enums.AuditAction
	PreviousStatus  *enums.LedgerEntryStatus
	NewStatus       enums.LedgerEntryStatus
	UserID          string
	ExternalEventID *string
	Notes           *string
}

type Writer struct {
	db      *gorm.DB
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewWriter binds the writer to a non-transactional handle so a rolled back
// business transaction cannot take its audit rows with it.
func NewWriter(db *gorm.DB, logg *logger.Logger, m *metrics.LedgerMetrics) (*Writer, error) {
	if db == nil {
		return nil, fmt.Errorf("audit db required")
	}
	if logg == nil {
		return nil, fmt.Errorf("audit logger required")
	}
	return &Writer{db: db, logg: logg, metrics: m, now: time.Now}, nil
}

// Record inserts the audit row. Failures are logged and counted only.
func (w *Writer) Record(ctx context.Context, input RecordInput) {
	row := &models.LedgerAuditEntry{
		EntryID:         input.EntryID,
		OrderID:         input.OrderID,
		Action:          input.Action,
		PreviousStatus:  input.PreviousStatus,
		NewStatus:       input.NewStatus,
		UserID:          input.UserID,
		ExternalEventID: input.ExternalEventID,
		Notes:           input.Notes,
		CreatedAt:       w.now().UTC(),
	}
	if err := w.db.WithContext(ctx).Create(row).Error; err != nil {
		logCtx := w.logg.WithFields(ctx, map[string]any{
			"entry_id": input.EntryID.String(),
			"order_id": input.OrderID.String(),
			"action":   input.Action.String(),
		})
		w.logg.Error(logCtx, "audit.write_failed", err)
		w.metrics.IncAuditFailure(input.Action.String())
	}
}

// ListByEntry returns the audit trail for one entry, oldest first.
func (w *Writer) ListByEntry(ctx context.Context, entryID uuid.UUID) ([]models.LedgerAuditEntry, error) {
	var rows []models.LedgerAuditEntry
	if err := w.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
