// Package refunds splits provider refunds across an order's card payments and
// records them in the ledger.
package refunds

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// Source is a confirmed provider payment that refunds can be drawn from.
type Source struct {
	EntryID           uuid.UUID
	ExternalPaymentID string
	Amount            decimal.Decimal
	Refunded          decimal.Decimal
	CreatedAt         time.Time
}

// Capacity is what is still refundable on the source, never negative.
func (s Source) Capacity() decimal.Decimal {
	left := s.Amount.Sub(s.Refunded)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Allocation is the share of a refund drawn from one source.
type Allocation struct {
	SourceEntryID     uuid.UUID       `json:"source_entry_id"`
	ExternalPaymentID string          `json:"external_payment_id"`
	Amount            decimal.Decimal `json:"amount"`
}

type Plan struct {
	Requested   decimal.Decimal
	Allocations []Allocation
	Unallocated decimal.Decimal
}

// RequiresManualRefund is true when the sources cannot cover the request.
func (p Plan) RequiresManualRefund() bool {
	return p.Unallocated.IsPositive()
}

// Allocate draws requested greedily from sources, oldest first.
func Allocate(sources []Source, requested decimal.Decimal) Plan {
	plan := Plan{Requested: requested, Unallocated: requested}
	if !requested.IsPositive() {
		plan.Unallocated = decimal.Zero
		return plan
	}

	ordered := append([]Source(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].EntryID.String() < ordered[j].EntryID.String()
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	remaining := requested
	for _, src := range ordered {
		if !remaining.IsPositive() {
			break
		}
		capacity := src.Capacity()
		if !capacity.IsPositive() {
			continue
		}
		take := decimal.Min(capacity, remaining)
		plan.Allocations = append(plan.Allocations, Allocation{
			SourceEntryID:     src.EntryID,
			ExternalPaymentID: src.ExternalPaymentID,
			Amount:            take,
		})
		remaining = remaining.Sub(take)
	}
	plan.Unallocated = remaining
	return plan
}

// SourcesFromEntries picks the confirmed provider payments out of an order's
// history and nets off the live refunds already linked to each.
func SourcesFromEntries(entries []models.LedgerEntry) []Source {
	refunded := map[uuid.UUID]decimal.Decimal{}
	for _, entry := range entries {
		if entry.TransactionType != enums.TransactionTypeRefund || entry.Status == enums.LedgerEntryStatusVoided || entry.SourceEntryID == nil {
			continue
		}
		refunded[*entry.SourceEntryID] = refunded[*entry.SourceEntryID].Add(entry.Amount)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.TransactionType != enums.TransactionTypePayment ||
			entry.Method != enums.PaymentMethodProviderCharge ||
			!entry.Status.IsConfirmed() ||
			entry.ExternalPaymentID == nil {
			continue
		}
		sources = append(sources, Source{
			EntryID:           entry.ID,
			ExternalPaymentID: *entry.ExternalPaymentID,
			Amount:            entry.Amount,
			Refunded:          refunded[entry.ID],
			CreatedAt:         entry.CreatedAt,
		})
	}
	return sources
}
