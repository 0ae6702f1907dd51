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

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentLink(ctx context.Context, paymentLinkID string) (*models.Order, error) {
	var link models.PaymentLink
	if err := r.db.WithContext(ctx).
		Where("stripe_payment_link_id = ?", paymentLinkID).
		First(&link).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, link.OrderID)
}

func (r *repository) CreatePaymentLink(ctx context.Context, link *models.PaymentLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *repository) UpdateDepositRequired(ctx context.Context, id uuid.UUID, deposit decimal.Decimal) error {
	return r.update(ctx, id, map[string]any{"deposit_required": deposit})
}

// SaveLedgerSummary overwrites every ledger_* column; no field is merged.
func (r *repository) SaveLedgerSummary(ctx context.Context, id uuid.UUID, summary models.OrderLedgerSummary) error {
	return r.update(ctx, id, map[string]any{
		"ledger_deposit_required":    summary.DepositRequired,
		"ledger_original_deposit":    summary.OriginalDeposit,
		"ledger_deposit_adjustments": summary.DepositAdjustments,
		"ledger_total_received":      summary.TotalReceived,
		"ledger_total_refunded":      summary.TotalRefunded,
		"ledger_net_received":        summary.NetReceived,
		"ledger_balance":             summary.Balance,
		"ledger_balance_status":      summary.BalanceStatus,
		"ledger_pending_received":    summary.PendingReceived,
		"ledger_pending_refunds":     summary.PendingRefunds,
		"ledger_entry_count":         summary.EntryCount,
		"ledger_last_entry_at":       summary.LastEntryAt,
		"ledger_calculated_at":       summary.CalculatedAt,
	})
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, paidAt *time.Time) error {
	return r.update(ctx, id, map[string]any{
		"payment_status": status,
		"paid_at":        paidAt,
	})
}

func (r *repository) SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) error {
	return r.update(ctx, id, map[string]any{"stripe_payment_intent_id": paymentIntentID})
}

func (r *repository) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.update(ctx, id, map[string]any{"stripe_checkout_session_id": sessionID})
}

func (r *repository) RecordPaymentError(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"last_payment_error":    message,
		"last_payment_error_at": at,
	})
}

// AdvanceStatus moves the order from one status to another only when it is
// still in from. It reports whether the row changed.
func (r *repository) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
