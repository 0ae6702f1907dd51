package refunds

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
)

type IssueInput struct {
	OrderID        uuid.UUID
	Amount         decimal.Decimal
	Reason         string
	ActorID        string
	ApprovalCode   string
	IdempotencyKey string
}

type VerifyInput struct {
	OrderID      uuid.UUID
	RefundID     string
	Notes        string
	ActorID      string
	ApprovalCode string
}

// IssuedRefund is one allocation the provider accepted.
type IssuedRefund struct {
	Allocation
	RefundID      string
	Status        string
	EntryID       uuid.UUID
	PaymentNumber string
}

// FailedRefund is the allocation that stopped the run. RefundID is set when the
// provider refunded but recording the entry failed.
type FailedRefund struct {
	Allocation
	RefundID string
	Error    string
}

type IssueResult struct {
	OrderID              uuid.UUID
	Requested            decimal.Decimal
	Succeeded            []IssuedRefund
	Failed               *FailedRefund
	Remaining            []Allocation
	Unallocated          decimal.Decimal
	RequiresManualRefund bool
	Summary              *models.OrderLedgerSummary
}

type allocationDTO struct {
	SourceEntryID     uuid.UUID  `json:"source_entry_id"`
	ExternalPaymentID string     `json:"external_payment_id"`
	Amount            string     `json:"amount"`
	RefundID          string     `json:"refund_id,omitempty"`
	Status            string     `json:"status,omitempty"`
	EntryID           *uuid.UUID `json:"entry_id,omitempty"`
	PaymentNumber     string     `json:"payment_number,omitempty"`
	Error             string     `json:"error,omitempty"`
}

// Breakdown is the per-source view returned to callers and attached to
// partial-failure errors.
type Breakdown struct {
	OrderID              uuid.UUID       `json:"order_id"`
	Requested            string          `json:"requested"`
	Succeeded            []allocationDTO `json:"succeeded"`
	Failed               *allocationDTO  `json:"failed,omitempty"`
	Remaining            []allocationDTO `json:"remaining"`
	Unallocated          string          `json:"unallocated"`
	RequiresManualRefund bool            `json:"requires_manual_refund"`
}

func (r *IssueResult) Breakdown() Breakdown {
	out := Breakdown{
		OrderID:              r.OrderID,
		Requested:            r.Requested.StringFixed(2),
		Succeeded:            make([]allocationDTO, 0, len(r.Succeeded)),
		Remaining:            make([]allocationDTO, 0, len(r.Remaining)),
		Unallocated:          r.Unallocated.StringFixed(2),
		RequiresManualRefund: r.RequiresManualRefund,
	}
	for _, s := range r.Succeeded {
		entryID := s.EntryID
		out.Succeeded = append(out.Succeeded, allocationDTO{
			SourceEntryID:     s.SourceEntryID,
			ExternalPaymentID: s.ExternalPaymentID,
			Amount:            s.Amount.StringFixed(2),
			RefundID:          s.RefundID,
			Status:            s.Status,
			EntryID:           &entryID,
			PaymentNumber:     s.PaymentNumber,
		})
	}
	if r.Failed != nil {
		out.Failed = &allocationDTO{
			SourceEntryID:     r.Failed.SourceEntryID,
			ExternalPaymentID: r.Failed.ExternalPaymentID,
			Amount:            r.Failed.Amount.StringFixed(2),
			RefundID:          r.Failed.RefundID,
			Error:             r.Failed.Error,
		}
	}
	for _, a := range r.Remaining {
		out.Remaining = append(out.Remaining, allocationDTO{
			SourceEntryID:     a.SourceEntryID,
			ExternalPaymentID: a.ExternalPaymentID,
			Amount:            a.Amount.StringFixed(2),
		})
	}
	return out
}
