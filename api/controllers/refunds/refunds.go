package refunds

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/api/middleware"
	"github.com/angelmondragon/deposit-ledger/api/responses"
	"github.com/angelmondragon/deposit-ledger/api/validators"
	internalledger "github.com/angelmondragon/deposit-ledger/internal/ledger"
	internalrefunds "github.com/angelmondragon/deposit-ledger/internal/refunds"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
)

type issueRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason" validate:"required"`
	ApprovalCode string          `json:"approval_code" validate:"required"`
}

type verifyRequest struct {
	RefundID     string `json:"refund_id" validate:"required,startswith=re_"`
	Notes        string `json:"notes,omitempty"`
	ApprovalCode string `json:"approval_code" validate:"required"`
}

type issueResponse struct {
	internalrefunds.Breakdown
	Summary *internalledger.SummaryDTO `json:"summary,omitempty"`
}

type verifyResponse struct {
	EntryID       string                     `json:"entry_id"`
	PaymentNumber string                     `json:"payment_number"`
	Entry         internalledger.EntryDTO    `json:"entry"`
	Summary       *internalledger.SummaryDTO `json:"summary,omitempty"`
}

// Issue refunds the requested amount across the order's provider charges,
// oldest first. A partial failure is reported as a dependency error whose
// details carry the per-source breakdown.
func Issue(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req issueRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Issue(r.Context(), internalrefunds.IssueInput{
			OrderID:        orderID,
			Amount:         req.Amount,
			Reason:         validators.SanitizeString(req.Reason, 500),
			ActorID:        middleware.UserIDFromContext(r.Context()),
			ApprovalCode:   req.ApprovalCode,
			IdempotencyKey: strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := issueResponse{Breakdown: result.Breakdown()}
		if result.Summary != nil {
			summary := internalledger.NewSummaryDTO(orderID, *result.Summary)
			resp.Summary = &summary
		}
		responses.WriteSuccess(w, resp)
	}
}

// Verify records a refund that was issued directly in the provider dashboard.
func Verify(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req verifyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), internalrefunds.VerifyInput{
			OrderID:      orderID,
			RefundID:     req.RefundID,
			Notes:        validators.SanitizeString(req.Notes, 2000),
			ActorID:      middleware.UserIDFromContext(r.Context()),
			ApprovalCode: req.ApprovalCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := verifyResponse{
			EntryID:       result.Entry.ID.String(),
			PaymentNumber: result.Entry.PaymentNumber,
			Entry:         internalledger.NewEntryDTO(*result.Entry),
		}
		if result.Summary != nil {
			summary := internalledger.NewSummaryDTO(orderID, *result.Summary)
			resp.Summary = &summary
		}
		responses.WriteSuccess(w, resp)
	}
}
