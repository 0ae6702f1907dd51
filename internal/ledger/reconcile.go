package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/internal/orders"
	"github.com/angelmondragon/deposit-ledger/pkg/db"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ReconcilerParams struct {
	Entries           Repository
	Orders            orders.Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.LedgerMetrics
	Clock             func() time.Time
}

// Reconciler rebuilds an order's embedded ledger summary from its entries and
// is the only writer of the order's payment_status.
type Reconciler struct {
	entries Repository
	orders  orders.Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Entries == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		entries: params.Entries,
		orders:  params.Orders,
		tx:      params.TransactionRunner,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     clock,
	}, nil
}

// Recompute overwrites the order summary from the current entry history and
// syncs payment_status. Running it any number of times is safe.
func (r *Reconciler) Recompute(ctx context.Context, orderID uuid.UUID) (*models.OrderLedgerSummary, error) {
	started := time.Now()
	var summary models.OrderLedgerSummary
	var change *PaymentStatusChange

	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := r.orders.WithTx(tx)
		order, err := orderRepo.FindByID(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		entries, err := r.entries.WithTx(tx).ListByOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
		}

		now := r.now()
		summary = ComputeSummary(*order, entries, now)
		if err := orderRepo.SaveLedgerSummary(ctx, orderID, summary); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ledger summary")
		}

		if next, ok := NextPaymentStatus(*order, summary, now); ok {
			if err := orderRepo.UpdatePaymentStatus(ctx, orderID, next.Status, next.PaidAt); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
			}
			change = &next
		}
		return nil
	})
	r.metrics.ObserveRecompute(time.Since(started), err)
	if err != nil {
		return nil, err
	}

	logCtx := r.logg.WithOrderID(ctx, orderID.String())
	if change != nil {
		r.logg.Info(r.logg.WithField(logCtx, "payment_status", change.Status.String()), "ledger.payment_status_changed")
	}
	r.logg.Debug(r.logg.WithFields(logCtx, map[string]any{
		"balance":        summary.Balance.StringFixed(2),
		"balance_status": summary.BalanceStatus.String(),
		"entry_count":    summary.EntryCount,
	}), "ledger.summary_recomputed")
	return &summary, nil
}
