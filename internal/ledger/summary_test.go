package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

var summaryNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func entryAt(txType enums.TransactionType, amount string, status enums.LedgerEntryStatus, offset time.Duration) models.LedgerEntry {
	return models.LedgerEntry{
		ID:              uuid.New(),
		TransactionType: txType,
		Amount:          dec(amount),
		Status:          status,
		CreatedAt:       summaryNow.Add(-time.Hour).Add(offset),
	}
}

func TestComputeSummaryDepositScenario(t *testing.T) {
	order := models.Order{DepositRequired: dec("1000"), OriginalDeposit: dec("1000")}

	empty := ComputeSummary(order, nil, summaryNow)
	assert.True(t, empty.Balance.Equal(dec("1000")))
	assert.Equal(t, enums.BalanceStatusUnderpaid, empty.BalanceStatus)
	assert.Zero(t, empty.EntryCount)
	assert.Nil(t, empty.LastEntryAt)

	pending := entryAt(enums.TransactionTypePayment, "200", enums.LedgerEntryStatusPending, 0)
	got := ComputeSummary(order, []models.LedgerEntry{pending}, summaryNow)
	assert.Equal(t, enums.BalanceStatusPending, got.BalanceStatus)
	assert.True(t, got.PendingReceived.Equal(dec("200")))
	assert.True(t, got.Balance.Equal(dec("1000")))

	pending.Status = enums.LedgerEntryStatusApproved
	got = ComputeSummary(order, []models.LedgerEntry{pending}, summaryNow)
	assert.Equal(t, enums.BalanceStatusUnderpaid, got.BalanceStatus)
	assert.True(t, got.TotalReceived.Equal(dec("200")))
	assert.True(t, got.Balance.Equal(dec("800")))

	rest := entryAt(enums.TransactionTypePayment, "800", enums.LedgerEntryStatusVerified, time.Minute)
	got = ComputeSummary(order, []models.LedgerEntry{pending, rest}, summaryNow)
	assert.Equal(t, enums.BalanceStatusPaid, got.BalanceStatus)
	assert.True(t, got.Balance.IsZero())
	require.NotNil(t, got.LastEntryAt)
	assert.Equal(t, rest.CreatedAt, *got.LastEntryAt)
	require.NotNil(t, got.CalculatedAt)
	assert.Equal(t, summaryNow, *got.CalculatedAt)

	extra := entryAt(enums.TransactionTypePayment, "50", enums.LedgerEntryStatusApproved, 2*time.Minute)
	got = ComputeSummary(order, []models.LedgerEntry{pending, rest, extra}, summaryNow)
	assert.Equal(t, enums.BalanceStatusOverpaid, got.BalanceStatus)
	assert.True(t, got.Balance.Equal(dec("-50")))
}

func TestComputeSummaryRefundsAndAdjustments(t *testing.T) {
	order := models.Order{DepositRequired: dec("1000"), OriginalDeposit: dec("900")}
	entries := []models.LedgerEntry{
		entryAt(enums.TransactionTypePayment, "1200", enums.LedgerEntryStatusVerified, 0),
		entryAt(enums.TransactionTypeRefund, "200", enums.LedgerEntryStatusVerified, time.Minute),
		entryAt(enums.TransactionTypeRefund, "25", enums.LedgerEntryStatusPending, 2*time.Minute),
		entryAt(enums.TransactionTypeDepositIncrease, "150", enums.LedgerEntryStatusApproved, 3*time.Minute),
		entryAt(enums.TransactionTypeDepositDecrease, "50", enums.LedgerEntryStatusApproved, 4*time.Minute),
	}

	got := ComputeSummary(order, entries, summaryNow)
	assert.True(t, got.TotalReceived.Equal(dec("1200")))
	assert.True(t, got.TotalRefunded.Equal(dec("200")))
	assert.True(t, got.NetReceived.Equal(dec("1000")))
	assert.True(t, got.PendingRefunds.Equal(dec("25")))
	assert.True(t, got.DepositAdjustments.Equal(dec("100")))
	assert.True(t, got.OriginalDeposit.Equal(dec("900")))
	assert.True(t, got.Balance.IsZero())
	assert.Equal(t, enums.BalanceStatusPaid, got.BalanceStatus)
	assert.Equal(t, 5, got.EntryCount)
}

func TestComputeSummaryIgnoresVoided(t *testing.T) {
	order := models.Order{DepositRequired: dec("1000")}
	voided := entryAt(enums.TransactionTypePayment, "1000", enums.LedgerEntryStatusVoided, time.Minute)
	live := entryAt(enums.TransactionTypePayment, "200", enums.LedgerEntryStatusApproved, 0)

	got := ComputeSummary(order, []models.LedgerEntry{live, voided}, summaryNow)
	assert.True(t, got.Balance.Equal(dec("800")))
	assert.Equal(t, 1, got.EntryCount)
	require.NotNil(t, got.LastEntryAt)
	assert.Equal(t, live.CreatedAt, *got.LastEntryAt)
}

func TestComputeSummaryIsOrderIndependent(t *testing.T) {
	order := models.Order{DepositRequired: dec("2500.50")}
	entries := []models.LedgerEntry{
		entryAt(enums.TransactionTypePayment, "1000.25", enums.LedgerEntryStatusVerified, 0),
		entryAt(enums.TransactionTypePayment, "300.10", enums.LedgerEntryStatusPending, time.Minute),
		entryAt(enums.TransactionTypeRefund, "99.99", enums.LedgerEntryStatusApproved, 2*time.Minute),
		entryAt(enums.TransactionTypePayment, "400", enums.LedgerEntryStatusVoided, 3*time.Minute),
		entryAt(enums.TransactionTypeDepositIncrease, "10", enums.LedgerEntryStatusApproved, 4*time.Minute),
	}
	want := ComputeSummary(order, entries, summaryNow)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.LedgerEntry(nil), entries...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assertSummaryEqual(t, want, ComputeSummary(order, shuffled, summaryNow))
	}
}

func assertSummaryEqual(t *testing.T, want, got models.OrderLedgerSummary) {
	t.Helper()
	pairs := map[string][2]decimal.Decimal{
		"deposit_required":    {want.DepositRequired, got.DepositRequired},
		"original_deposit":    {want.OriginalDeposit, got.OriginalDeposit},
		"deposit_adjustments": {want.DepositAdjustments, got.DepositAdjustments},
		"total_received":      {want.TotalReceived, got.TotalReceived},
		"total_refunded":      {want.TotalRefunded, got.TotalRefunded},
		"net_received":        {want.NetReceived, got.NetReceived},
		"balance":             {want.Balance, got.Balance},
		"pending_received":    {want.PendingReceived, got.PendingReceived},
		"pending_refunds":     {want.PendingRefunds, got.PendingRefunds},
	}
	for field, pair := range pairs {
		assert.Truef(t, pair[0].Equal(pair[1]), "%s: want %s got %s", field, pair[0], pair[1])
	}
	assert.Equal(t, want.BalanceStatus, got.BalanceStatus)
	assert.Equal(t, want.EntryCount, got.EntryCount)
	assert.Equal(t, want.LastEntryAt == nil, got.LastEntryAt == nil)
	if want.LastEntryAt != nil && got.LastEntryAt != nil {
		assert.True(t, want.LastEntryAt.Equal(*got.LastEntryAt))
	}
	assert.Equal(t, want.CalculatedAt == nil, got.CalculatedAt == nil)
	if want.CalculatedAt != nil && got.CalculatedAt != nil {
		assert.True(t, want.CalculatedAt.Equal(*got.CalculatedAt))
	}
}

func TestNextPaymentStatus(t *testing.T) {
	paidAt := summaryNow.Add(-24 * time.Hour)

	tests := []struct {
		name       string
		order      models.Order
		summary    models.OrderLedgerSummary
		wantChange bool
		want       PaymentStatusChange
	}{
		{
			name:       "settled marks paid with now",
			order:      models.Order{PaymentStatus: enums.PaymentStatusPending},
			summary:    models.OrderLedgerSummary{BalanceStatus: enums.BalanceStatusPaid, EntryCount: 2},
			wantChange: true,
			want:       PaymentStatusChange{Status: enums.PaymentStatusPaid, PaidAt: &summaryNow},
		},
		{
			name:       "overpaid keeps first paid_at",
			order:      models.Order{PaymentStatus: enums.PaymentStatusPending, PaidAt: &paidAt},
			summary:    models.OrderLedgerSummary{BalanceStatus: enums.BalanceStatusOverpaid, EntryCount: 1},
			wantChange: true,
			want:       PaymentStatusChange{Status: enums.PaymentStatusPaid, PaidAt: &paidAt},
		},
		{
			name:    "zero deposit without entries stays",
			order:   models.Order{PaymentStatus: enums.PaymentStatusPending},
			summary: models.OrderLedgerSummary{BalanceStatus: enums.BalanceStatusPaid},
		},
		{
			name:       "underpaid after paid reverts",
			order:      models.Order{PaymentStatus: enums.PaymentStatusPaid, PaidAt: &paidAt},
			summary:    models.OrderLedgerSummary{BalanceStatus: enums.BalanceStatusUnderpaid, EntryCount: 1},
			wantChange: true,
			want:       PaymentStatusChange{Status: enums.PaymentStatusPending, PaidAt: &paidAt},
		},
		{
			name:    "already paid no-op",
			order:   models.Order{PaymentStatus: enums.PaymentStatusPaid, PaidAt: &paidAt},
			summary: models.OrderLedgerSummary{BalanceStatus: enums.BalanceStatusPaid, EntryCount: 1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := NextPaymentStatus(tc.order, tc.summary, summaryNow)
			require.Equal(t, tc.wantChange, changed)
			if !changed {
				return
			}
			assert.Equal(t, tc.want.Status, got.Status)
			require.NotNil(t, got.PaidAt)
			assert.True(t, tc.want.PaidAt.Equal(*got.PaidAt))
		})
	}
}
