package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	"github.com/angelmondragon/deposit-ledger/pkg/pagination"
)

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	List(ctx context.Context, query listQuery) ([]models.LedgerEntry, *pagination.Cursor, error)
	FindByExternalPaymentID(ctx context.Context, transactionType enums.TransactionType, externalID string) (*models.LedgerEntry, error)
	Transition(ctx context.Context, id uuid.UUID, target enums.LedgerEntryStatus, updates map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

type listQuery struct {
	OrderID         *uuid.UUID
	Status          *enums.LedgerEntryStatus
	TransactionType *enums.TransactionType
	IncludeVoided   bool
	Limit           int
	Cursor          *pagination.Cursor
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByOrder returns every entry for the order, voided included, oldest first.
func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) List(ctx context.Context, query listQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&models.LedgerEntry{})
	if query.OrderID != nil {
		q = q.Where("order_id = ?", *query.OrderID)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	} else if !query.IncludeVoided {
		q = q.Where("status <> ?", enums.LedgerEntryStatusVoided)
	}
	if query.TransactionType != nil {
		q = q.Where("transaction_type = ?", *query.TransactionType)
	}
	if query.Cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var entries []models.LedgerEntry
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(query.Limit)).Find(&entries).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.TrimPage(entries, query.Limit, func(e models.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return page, next, nil
}

// FindByExternalPaymentID returns the non-voided entry carrying the provider
// reference, or nil when none exists.
func (r *repository) FindByExternalPaymentID(ctx context.Context, transactionType enums.TransactionType, externalID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("transaction_type = ? AND external_payment_id = ? AND status <> ?", transactionType, externalID, enums.LedgerEntryStatusVoided).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Transition moves the entry to target only while it sits in one of the
// statuses allowed to reach target. It reports whether the row changed.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, target enums.LedgerEntryStatus, updates map[string]any) (bool, error) {
	sources := enums.LedgerEntrySourcesFor(target)
	if len(sources) == 0 {
		return false, nil
	}
	values := map[string]any{}
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = target
	values["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ? AND status IN ?", id, sources).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
