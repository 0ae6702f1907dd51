package ledger

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/api/middleware"
	"github.com/angelmondragon/deposit-ledger/api/responses"
	"github.com/angelmondragon/deposit-ledger/api/validators"
	internalledger "github.com/angelmondragon/deposit-ledger/internal/ledger"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/pagination"
)

const maxNotesLength = 2000

type addEntryRequest struct {
	TransactionType   string          `json:"transaction_type" validate:"required,oneof=payment refund deposit_increase deposit_decrease"`
	Amount            decimal.Decimal `json:"amount"`
	Method            string          `json:"method" validate:"required,oneof=provider_charge check wire credit_on_file cash other"`
	Category          string          `json:"category" validate:"required,oneof=initial_deposit additional_deposit refund change_order_adjustment"`
	ExternalPaymentID *string         `json:"external_payment_id,omitempty"`
	SourceEntryID     *uuid.UUID      `json:"source_entry_id,omitempty"`
	ProofFile         *string         `json:"proof_file,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type approveRequest struct {
	ApprovalCode      string  `json:"approval_code" validate:"required"`
	ExternalPaymentID *string `json:"external_payment_id,omitempty"`
}

type entryMutationResponse struct {
	EntryID       uuid.UUID                  `json:"entry_id"`
	PaymentNumber string                     `json:"payment_number"`
	Status        enums.LedgerEntryStatus    `json:"status"`
	Verified      bool                       `json:"verified"`
	Entry         internalledger.EntryDTO    `json:"entry"`
	Summary       *internalledger.SummaryDTO `json:"summary"`
}

type auditLister interface {
	ListByEntry(ctx context.Context, entryID uuid.UUID) ([]models.LedgerAuditEntry, error)
}

type auditEntryDTO struct {
	ID              uuid.UUID                `json:"id"`
	Action          enums.AuditAction        `json:"action"`
	PreviousStatus  *enums.LedgerEntryStatus `json:"previous_status,omitempty"`
	NewStatus       enums.LedgerEntryStatus  `json:"new_status"`
	UserID          string                   `json:"user_id"`
	ExternalEventID *string                  `json:"external_event_id,omitempty"`
	Notes           *string                  `json:"notes,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

// AddEntry records a manual ledger entry against the order in the path. The
// authenticated staff member is the creator.
func AddEntry(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req addEntryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateEntry(r.Context(), internalledger.CreateEntryInput{
			OrderID:           orderID,
			TransactionType:   enums.TransactionType(req.TransactionType),
			Amount:            req.Amount,
			Method:            enums.PaymentMethod(req.Method),
			Category:          enums.LedgerCategory(req.Category),
			ExternalPaymentID: req.ExternalPaymentID,
			SourceEntryID:     req.SourceEntryID,
			ProofFile:         req.ProofFile,
			Notes:             sanitizeNotes(req.Notes),
			CreatedBy:         middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mutationResponse(result))
	}
}

// ListOrderEntries pages an order's entries, newest first.
func ListOrderEntries(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.OrderID = &orderID
		writeList(w, r, svc, params, logg)
	}
}

// ListAllEntries pages entries across orders.
func ListAllEntries(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeList(w, r, svc, params, logg)
	}
}

// GetEntry returns one entry.
func GetEntry(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.GetEntry(r.Context(), entryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalledger.NewEntryDTO(*entry))
	}
}

// VoidEntry soft-deletes an entry. A reason is mandatory.
func VoidEntry(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req voidRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VoidEntry(r.Context(), internalledger.VoidEntryInput{
			EntryID: entryID,
			Reason:  validators.SanitizeString(req.Reason, maxNotesLength),
			ActorID: middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mutationResponse(result))
	}
}

// ApproveEntry promotes a pending entry with a manager approval code.
func ApproveEntry(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req approveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ApproveEntry(r.Context(), internalledger.ApproveEntryInput{
			EntryID:           entryID,
			ApproverID:        middleware.UserIDFromContext(r.Context()),
			ApprovalCode:      req.ApprovalCode,
			ExternalPaymentID: req.ExternalPaymentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mutationResponse(result))
	}
}

// EntryAudit returns the audit trail of one entry, oldest first.
func EntryAudit(svc internalledger.Service, audit auditLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.GetEntry(r.Context(), entryID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := audit.ListByEntry(r.Context(), entryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit trail"))
			return
		}
		items := make([]auditEntryDTO, 0, len(rows))
		for _, row := range rows {
			items = append(items, auditEntryDTO{
				ID:              row.ID,
				Action:          row.Action,
				PreviousStatus:  row.PreviousStatus,
				NewStatus:       row.NewStatus,
				UserID:          row.UserID,
				ExternalEventID: row.ExternalEventID,
				Notes:           row.Notes,
				CreatedAt:       row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

func listParams(r *http.Request) (internalledger.ListParams, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return internalledger.ListParams{}, err
	}
	includeVoided, err := validators.ParseQueryBool(r, "include_voided", false)
	if err != nil {
		return internalledger.ListParams{}, err
	}
	params := internalledger.ListParams{
		Limit:         limit,
		Cursor:        strings.TrimSpace(r.URL.Query().Get("cursor")),
		IncludeVoided: includeVoided,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := enums.LedgerEntryStatus(raw)
		params.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("transaction_type")); raw != "" {
		txType := enums.TransactionType(raw)
		params.TransactionType = &txType
	}
	return params, nil
}

func writeList(w http.ResponseWriter, r *http.Request, svc internalledger.Service, params internalledger.ListParams, logg *logger.Logger) {
	list, err := svc.ListEntries(r.Context(), params)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, list)
}

func mutationResponse(result *internalledger.EntryResult) entryMutationResponse {
	resp := entryMutationResponse{
		EntryID:       result.Entry.ID,
		PaymentNumber: result.Entry.PaymentNumber,
		Status:        result.Entry.Status,
		Verified:      result.Verified,
		Entry:         internalledger.NewEntryDTO(*result.Entry),
	}
	if result.Summary != nil {
		summary := internalledger.NewSummaryDTO(result.Entry.OrderID, *result.Summary)
		resp.Summary = &summary
	}
	return resp
}

func sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	clean := validators.SanitizeString(*notes, maxNotesLength)
	if clean == "" {
		return nil
	}
	return &clean
}
