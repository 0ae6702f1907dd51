package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/pkg/db/dbtest"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

func seedOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:     "ORD-" + uuid.NewString()[:6],
		CustomerName:    "Acme",
		Status:          status,
		PaymentStatus:   enums.PaymentStatusPending,
		DepositRequired: decimal.NewFromInt(1000),
		OriginalDeposit: decimal.NewFromInt(1000),
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), order))
	return order
}

func TestAdvanceStatusOnlyFromExpectedState(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, enums.OrderStatusSigned)

	moved, err := repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusSigned, enums.OrderStatusReadyForManufacturer)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusSigned, enums.OrderStatusReadyForManufacturer)
	require.NoError(t, err)
	assert.False(t, moved)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReadyForManufacturer, stored.Status)
}

func TestSaveLedgerSummaryOverwritesEveryField(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, enums.OrderStatusDraft)

	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := models.OrderLedgerSummary{
		DepositRequired: decimal.NewFromInt(1000),
		TotalReceived:   decimal.NewFromInt(400),
		NetReceived:     decimal.NewFromInt(400),
		Balance:         decimal.NewFromInt(600),
		BalanceStatus:   enums.BalanceStatusUnderpaid,
		PendingReceived: decimal.NewFromInt(50),
		EntryCount:      2,
		LastEntryAt:     &last,
		CalculatedAt:    &last,
	}
	require.NoError(t, repo.SaveLedgerSummary(ctx, order.ID, first))

	second := models.OrderLedgerSummary{
		DepositRequired: decimal.NewFromInt(1000),
		Balance:         decimal.NewFromInt(1000),
		BalanceStatus:   enums.BalanceStatusUnderpaid,
	}
	require.NoError(t, repo.SaveLedgerSummary(ctx, order.ID, second))

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	got := stored.LedgerSummary
	assert.True(t, got.TotalReceived.IsZero())
	assert.True(t, got.PendingReceived.IsZero())
	assert.Equal(t, 0, got.EntryCount)
	assert.Nil(t, got.LastEntryAt)
	assert.Nil(t, got.CalculatedAt)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(1000)))
}

func TestUpdatesOnMissingOrderReturnNotFound(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	err := repo.SetPaymentIntent(context.Background(), uuid.New(), "pi_123")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecordPaymentErrorAndIntent(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := seedOrder(t, conn, enums.OrderStatusSigned)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SetPaymentIntent(ctx, order.ID, "pi_123"))
	require.NoError(t, repo.SetCheckoutSession(ctx, order.ID, "cs_123"))
	require.NoError(t, repo.RecordPaymentError(ctx, order.ID, "card_declined", at))

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.StripePaymentIntentID)
	assert.Equal(t, "pi_123", *stored.StripePaymentIntentID)
	require.NotNil(t, stored.StripeCheckoutSessionID)
	assert.Equal(t, "cs_123", *stored.StripeCheckoutSessionID)
	require.NotNil(t, stored.LastPaymentError)
	assert.Equal(t, "card_declined", *stored.LastPaymentError)
}
