package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// CreateEntryInput is everything needed to append one ledger entry.
type CreateEntryInput struct {
	OrderID           uuid.UUID
	TransactionType   enums.TransactionType
	Amount            decimal.Decimal
	Method            enums.PaymentMethod
	Category          enums.LedgerCategory
	Status            enums.LedgerEntryStatus
	ExternalPaymentID *string
	ExternalVerified  bool
	ExternalEventID   *string
	SourceEntryID     *uuid.UUID
	ProofFile         *string
	Notes             *string
	CreatedBy         string
}

// ApproveEntryInput carries a manager approval. ExternalPaymentID optionally
// supplies the provider reference to verify against.
type ApproveEntryInput struct {
	EntryID           uuid.UUID
	ApproverID        string
	ApprovalCode      string
	ExternalPaymentID *string
}

type VoidEntryInput struct {
	EntryID uuid.UUID
	Reason  string
	ActorID string
}

// EntryResult pairs a written entry with the summary rebuilt after it.
// Summary is nil when the rebuild failed; recalculation repairs it.
type EntryResult struct {
	Entry    *models.LedgerEntry
	Summary  *models.OrderLedgerSummary
	Verified bool
}

// ListParams filters and pages entry reads.
type ListParams struct {
	OrderID         *uuid.UUID
	Status          *enums.LedgerEntryStatus
	TransactionType *enums.TransactionType
	IncludeVoided   bool
	Limit           int
	Cursor          string
}

// ListResult wraps returned entries and the cursor for the next page.
type ListResult struct {
	Items  []EntryDTO `json:"items"`
	Cursor string     `json:"cursor"`
}

// EntryDTO is the API shape of a ledger entry. Money is rendered with two decimals.
type EntryDTO struct {
	ID                uuid.UUID               `json:"id"`
	OrderID           uuid.UUID               `json:"order_id"`
	OrderNumber       string                  `json:"order_number"`
	PaymentNumber     string                  `json:"payment_number"`
	TransactionType   enums.TransactionType   `json:"transaction_type"`
	Amount            string                  `json:"amount"`
	Method            enums.PaymentMethod     `json:"method"`
	Category          enums.LedgerCategory    `json:"category"`
	Status            enums.LedgerEntryStatus `json:"status"`
	ExternalPaymentID *string                 `json:"external_payment_id,omitempty"`
	ExternalVerified  bool                    `json:"external_verified"`
	ExternalEventID   *string                 `json:"external_event_id,omitempty"`
	SourceEntryID     *uuid.UUID              `json:"source_entry_id,omitempty"`
	ProofFile         *string                 `json:"proof_file,omitempty"`
	Notes             *string                 `json:"notes,omitempty"`
	BalanceAfter      string                  `json:"balance_after"`
	DepositAtTime     string                  `json:"deposit_at_time"`
	CreatedBy         string                  `json:"created_by"`
	CreatedAt         time.Time               `json:"created_at"`
	ApprovedBy        *string                 `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time              `json:"approved_at,omitempty"`
	VerifiedAt        *time.Time              `json:"verified_at,omitempty"`
	VoidedBy          *string                 `json:"voided_by,omitempty"`
	VoidedAt          *time.Time              `json:"voided_at,omitempty"`
	VoidReason        *string                 `json:"void_reason,omitempty"`
}

func NewEntryDTO(entry models.LedgerEntry) EntryDTO {
	return EntryDTO{
		ID:                entry.ID,
		OrderID:           entry.OrderID,
		OrderNumber:       entry.OrderNumber,
		PaymentNumber:     entry.PaymentNumber,
		TransactionType:   entry.TransactionType,
		Amount:            entry.Amount.StringFixed(2),
		Method:            entry.Method,
		Category:          entry.Category,
		Status:            entry.Status,
		ExternalPaymentID: entry.ExternalPaymentID,
		ExternalVerified:  entry.ExternalVerified,
		ExternalEventID:   entry.ExternalEventID,
		SourceEntryID:     entry.SourceEntryID,
		ProofFile:         entry.ProofFile,
		Notes:             entry.Notes,
		BalanceAfter:      entry.BalanceAfter.StringFixed(2),
		DepositAtTime:     entry.DepositAtTime.StringFixed(2),
		CreatedBy:         entry.CreatedBy,
		CreatedAt:         entry.CreatedAt,
		ApprovedBy:        entry.ApprovedBy,
		ApprovedAt:        entry.ApprovedAt,
		VerifiedAt:        entry.VerifiedAt,
		VoidedBy:          entry.VoidedBy,
		VoidedAt:          entry.VoidedAt,
		VoidReason:        entry.VoidReason,
	}
}

// SummaryDTO is the API shape of an order's ledger summary.
type SummaryDTO struct {
	OrderID            uuid.UUID           `json:"order_id"`
	OrderNumber        string              `json:"order_number,omitempty"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status,omitempty"`
	DepositRequired    string              `json:"deposit_required"`
	OriginalDeposit    string              `json:"original_deposit"`
	DepositAdjustments string              `json:"deposit_adjustments"`
	TotalReceived      string              `json:"total_received"`
	TotalRefunded      string              `json:"total_refunded"`
	NetReceived        string              `json:"net_received"`
	Balance            string              `json:"balance"`
	BalanceStatus      enums.BalanceStatus `json:"balance_status"`
	PendingReceived    string              `json:"pending_received"`
	PendingRefunds     string              `json:"pending_refunds"`
	EntryCount         int                 `json:"entry_count"`
	LastEntryAt        *time.Time          `json:"last_entry_at,omitempty"`
	CalculatedAt       *time.Time          `json:"calculated_at,omitempty"`
}

func NewSummaryDTO(orderID uuid.UUID, summary models.OrderLedgerSummary) SummaryDTO {
	return SummaryDTO{
		OrderID:            orderID,
		DepositRequired:    summary.DepositRequired.StringFixed(2),
		OriginalDeposit:    summary.OriginalDeposit.StringFixed(2),
		DepositAdjustments: summary.DepositAdjustments.StringFixed(2),
		TotalReceived:      summary.TotalReceived.StringFixed(2),
		TotalRefunded:      summary.TotalRefunded.StringFixed(2),
		NetReceived:        summary.NetReceived.StringFixed(2),
		Balance:            summary.Balance.StringFixed(2),
		BalanceStatus:      summary.BalanceStatus,
		PendingReceived:    summary.PendingReceived.StringFixed(2),
		PendingRefunds:     summary.PendingRefunds.StringFixed(2),
		EntryCount:         summary.EntryCount,
		LastEntryAt:        summary.LastEntryAt,
		CalculatedAt:       summary.CalculatedAt,
	}
}

// NewOrderSummaryDTO adds the order's identity and payment status.
func NewOrderSummaryDTO(order models.Order) SummaryDTO {
	dto := NewSummaryDTO(order.ID, order.LedgerSummary)
	dto.OrderNumber = order.OrderNumber
	dto.PaymentStatus = order.PaymentStatus
	return dto
}
