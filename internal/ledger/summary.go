package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// ComputeSummary derives the order's ledger summary from its full entry
// history. It is pure: the same order, entries and now always produce the same
// summary regardless of entry order.
func ComputeSummary(order models.Order, entries []models.LedgerEntry, now time.Time) models.OrderLedgerSummary {
	totalReceived := decimal.Zero
	totalRefunded := decimal.Zero
	pendingReceived := decimal.Zero
	pendingRefunds := decimal.Zero
	adjustments := decimal.Zero
	count := 0
	var lastEntryAt *time.Time

	for i := range entries {
		entry := entries[i]
		if entry.Status == enums.LedgerEntryStatusVoided {
			continue
		}
		count++
		if lastEntryAt == nil || entry.CreatedAt.After(*lastEntryAt) {
			created := entry.CreatedAt
			lastEntryAt = &created
		}

		confirmed := entry.Status.IsConfirmed()
		switch entry.TransactionType {
		case enums.TransactionTypePayment:
			if confirmed {
				totalReceived = totalReceived.Add(entry.Amount)
			} else {
				pendingReceived = pendingReceived.Add(entry.Amount)
			}
		case enums.TransactionTypeRefund:
			if confirmed {
				totalRefunded = totalRefunded.Add(entry.Amount)
			} else {
				pendingRefunds = pendingRefunds.Add(entry.Amount)
			}
		case enums.TransactionTypeDepositIncrease:
			adjustments = adjustments.Add(entry.Amount)
		case enums.TransactionTypeDepositDecrease:
			adjustments = adjustments.Sub(entry.Amount)
		}
	}

	deposit := order.DepositRequired
	net := totalReceived.Sub(totalRefunded)
	balance := deposit.Sub(net)
	calculatedAt := now.UTC()

	return models.OrderLedgerSummary{
		DepositRequired:    deposit,
		OriginalDeposit:    order.OriginalDeposit,
		DepositAdjustments: adjustments,
		TotalReceived:      totalReceived,
		TotalRefunded:      totalRefunded,
		NetReceived:        net,
		Balance:            balance,
		BalanceStatus:      balanceStatusFor(balance, net, pendingReceived),
		PendingReceived:    pendingReceived,
		PendingRefunds:     pendingRefunds,
		EntryCount:         count,
		LastEntryAt:        lastEntryAt,
		CalculatedAt:       &calculatedAt,
	}
}

// balanceStatusFor reports pending only while nothing is confirmed yet but
// money is waiting on approval.
func balanceStatusFor(balance, net, pendingReceived decimal.Decimal) enums.BalanceStatus {
	switch {
	case pendingReceived.IsPositive() && net.IsZero():
		return enums.BalanceStatusPending
	case balance.IsZero():
		return enums.BalanceStatusPaid
	case balance.IsPositive():
		return enums.BalanceStatusUnderpaid
	default:
		return enums.BalanceStatusOverpaid
	}
}

// PaymentStatusChange is the order payment_status write a summary implies.
type PaymentStatusChange struct {
	Status enums.PaymentStatus
	PaidAt *time.Time
}

// NextPaymentStatus decides whether the order's payment_status must move.
// Orders without live entries are never marked paid.
func NextPaymentStatus(order models.Order, summary models.OrderLedgerSummary, now time.Time) (PaymentStatusChange, bool) {
	switch {
	case summary.BalanceStatus.Settled() && summary.EntryCount > 0 && order.PaymentStatus != enums.PaymentStatusPaid:
		paidAt := order.PaidAt
		if paidAt == nil {
			stamped := now.UTC()
			paidAt = &stamped
		}
		return PaymentStatusChange{Status: enums.PaymentStatusPaid, PaidAt: paidAt}, true
	case summary.BalanceStatus == enums.BalanceStatusUnderpaid && order.PaymentStatus == enums.PaymentStatusPaid:
		return PaymentStatusChange{Status: enums.PaymentStatusPending, PaidAt: order.PaidAt}, true
	default:
		return PaymentStatusChange{}, false
	}
}

// confirmedNet sums the signed amounts of confirmed, non-voided entries.
func confirmedNet(entries []models.LedgerEntry) decimal.Decimal {
	net := decimal.Zero
	for _, entry := range entries {
		if entry.Status.IsConfirmed() {
			net = net.Add(entry.SignedAmount())
		}
	}
	return net
}
