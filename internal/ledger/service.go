package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/internal/approvals"
	"github.com/angelmondragon/deposit-ledger/internal/audit"
	"github.com/angelmondragon/deposit-ledger/internal/mirror"
	"github.com/angelmondragon/deposit-ledger/internal/orders"
	"github.com/angelmondragon/deposit-ledger/internal/sequence"
	"github.com/angelmondragon/deposit-ledger/pkg/db"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/metrics"
	"github.com/angelmondragon/deposit-ledger/pkg/pagination"
	pkgstripe "github.com/angelmondragon/deposit-ledger/pkg/stripe"
)

// Service defines the ledger entry operations.
type Service interface {
	CreateEntry(ctx context.Context, input CreateEntryInput) (*EntryResult, error)
	ApproveEntry(ctx context.Context, input ApproveEntryInput) (*EntryResult, error)
	VoidEntry(ctx context.Context, input VoidEntryInput) (*EntryResult, error)
	GetEntry(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, params ListParams) (*ListResult, error)
	FindByExternalPaymentID(ctx context.Context, transactionType enums.TransactionType, externalID string) (*models.LedgerEntry, error)
	HasConfirmedPayment(ctx context.Context, orderID uuid.UUID) (bool, error)
	GetSummary(ctx context.Context, orderID uuid.UUID) (*SummaryDTO, error)
	Recompute(ctx context.Context, orderID uuid.UUID) (*models.OrderLedgerSummary, error)
}

// PaymentIntentFetcher looks up a provider payment for approval-time verification.
type PaymentIntentFetcher interface {
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type ServiceParams struct {
	Repo              Repository
	Orders            orders.Repository
	Sequence          sequence.Generator
	Reconciler        *Reconciler
	TransactionRunner txRunner
	Audit             audit.Recorder
	Mirror            mirror.Publisher
	Approvals         approvals.Verifier
	Payments          PaymentIntentFetcher
	Logger            *logger.Logger
	Metrics           *metrics.LedgerMetrics
	PaymentCounter    string
	Clock             func() time.Time
}

type service struct {
	repo       Repository
	orders     orders.Repository
	sequence   sequence.Generator
	reconciler *Reconciler
	tx         txRunner
	audit      audit.Recorder
	mirror     mirror.Publisher
	approvals  approvals.Verifier
	payments   PaymentIntentFetcher
	logg       *logger.Logger
	metrics    *metrics.LedgerMetrics
	counter    string
	now        func() time.Time
}

// NewService wires the ledger service. Payments may be nil, in which case
// approvals never upgrade entries to verified.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	case params.Sequence == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sequence generator required")
	case params.Reconciler == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	case params.TransactionRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Audit == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit recorder required")
	case params.Approvals == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "approval verifier required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	pub := params.Mirror
	if pub == nil {
		pub = mirror.Noop{}
	}
	counter := strings.TrimSpace(params.PaymentCounter)
	if counter == "" {
		counter = "payment_number"
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:       params.Repo,
		orders:     params.Orders,
		sequence:   params.Sequence,
		reconciler: params.Reconciler,
		tx:         params.TransactionRunner,
		audit:      params.Audit,
		mirror:     pub,
		approvals:  params.Approvals,
		payments:   params.Payments,
		logg:       params.Logger,
		metrics:    params.Metrics,
		counter:    counter,
		now:        clock,
	}, nil
}

func (s *service) CreateEntry(ctx context.Context, input CreateEntryInput) (*EntryResult, error) {
	if err := normalizeCreateInput(&input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var entry *models.LedgerEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		repo := s.repo.WithTx(tx)
		if input.ExternalPaymentID != nil {
			existing, err := repo.FindByExternalPaymentID(ctx, input.TransactionType, *input.ExternalPaymentID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check external payment id")
			}
			if existing != nil {
				return duplicateExternalError(*input.ExternalPaymentID, existing.ID)
			}
		}
		if input.SourceEntryID != nil {
			source, err := repo.FindByID(ctx, *input.SourceEntryID)
			if err != nil || source.OrderID != input.OrderID || source.TransactionType != enums.TransactionTypePayment {
				return pkgerrors.New(pkgerrors.CodeValidation, "source_entry_id must reference a payment on the same order")
			}
		}

		history, err := repo.ListByOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
		}

		n, err := s.sequence.Next(ctx, tx, s.counter)
		if err != nil {
			return err
		}

		entry = buildEntry(input, order, now)
		entry.PaymentNumber = sequence.FormatPaymentNumber(n)
		projected := confirmedNet(history).Add(entry.SignedAmount())
		entry.BalanceAfter = order.DepositRequired.Sub(projected)

		if err := repo.Create(ctx, entry); err != nil {
			if db.IsUniqueViolation(err, "") && input.ExternalPaymentID != nil {
				return duplicateExternalError(*input.ExternalPaymentID, uuid.Nil)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ledger entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithEntryID(s.logg.WithOrderID(ctx, entry.OrderID.String()), entry.ID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"payment_number":   entry.PaymentNumber,
		"transaction_type": entry.TransactionType.String(),
		"amount":           entry.Amount.StringFixed(2),
		"status":           entry.Status.String(),
	}), "ledger.entry_created")
	s.metrics.IncEntryCreated(entry.TransactionType.String(), entry.Method.String())

	s.audit.Record(ctx, audit.RecordInput{
		EntryID:         entry.ID,
		OrderID:         entry.OrderID,
		Action:          enums.AuditActionCreated,
		NewStatus:       entry.Status,
		UserID:          entry.CreatedBy,
		ExternalEventID: entry.ExternalEventID,
		Notes:           entry.Notes,
	})

	result := &EntryResult{Entry: entry, Verified: entry.Status == enums.LedgerEntryStatusVerified}
	result.Summary = s.recomputeAfter(logCtx, entry.OrderID)
	s.mirror.Publish(ctx, mirror.Event{Type: mirror.EventEntryCreated, OrderID: entry.OrderID, Entry: entry, Summary: result.Summary})
	return result, nil
}

func (s *service) ApproveEntry(ctx context.Context, input ApproveEntryInput) (*EntryResult, error) {
	approver := strings.TrimSpace(input.ApproverID)
	if approver == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "approver is required")
	}
	if _, err := s.approvals.Verify(ctx, input.ApprovalCode, approver); err != nil {
		return nil, err
	}

	entry, err := s.loadEntry(ctx, input.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != enums.LedgerEntryStatusPending {
		return nil, notPendingError(entry.Status)
	}

	now := s.now().UTC()
	moved, err := s.repo.Transition(ctx, entry.ID, enums.LedgerEntryStatusApproved, map[string]any{
		"approved_by": approver,
		"approved_at": now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve ledger entry")
	}
	if !moved {
		current, err := s.loadEntry(ctx, entry.ID)
		if err != nil {
			return nil, err
		}
		return nil, notPendingError(current.Status)
	}

	logCtx := s.logg.WithEntryID(s.logg.WithOrderID(ctx, entry.OrderID.String()), entry.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "approved_by", approver), "ledger.entry_approved")
	previous := enums.LedgerEntryStatusPending
	s.audit.Record(ctx, audit.RecordInput{
		EntryID:        entry.ID,
		OrderID:        entry.OrderID,
		Action:         enums.AuditActionApproved,
		PreviousStatus: &previous,
		NewStatus:      enums.LedgerEntryStatusApproved,
		UserID:         approver,
	})

	verified := s.verifyApproved(logCtx, entry, approver, input.ExternalPaymentID)

	updated, err := s.loadEntry(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	result := &EntryResult{Entry: updated, Verified: verified}
	result.Summary = s.recomputeAfter(logCtx, entry.OrderID)
	s.mirror.Publish(ctx, mirror.Event{Type: mirror.EventEntryUpdated, OrderID: entry.OrderID, Entry: updated, Summary: result.Summary})
	return result, nil
}

// verifyApproved upgrades an approved payment to verified when the provider
// confirms a succeeded PaymentIntent for the same amount. Failures only log.
func (s *service) verifyApproved(ctx context.Context, entry *models.LedgerEntry, approver string, supplied *string) bool {
	if entry.TransactionType != enums.TransactionTypePayment || s.payments == nil {
		return false
	}
	ref := ""
	if supplied != nil {
		ref = strings.TrimSpace(*supplied)
	}
	if ref == "" && entry.ExternalPaymentID != nil {
		ref = *entry.ExternalPaymentID
	}
	if ref == "" {
		return false
	}

	logCtx := s.logg.WithField(ctx, "external_payment_id", ref)
	intent, err := s.payments.GetPaymentIntent(ctx, ref)
	if err != nil {
		s.logg.Warn(logCtx, "ledger.verification_failed: "+err.Error())
		return false
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		s.logg.Warn(s.logg.WithField(logCtx, "intent_status", string(intent.Status)), "ledger.verification_not_succeeded")
		return false
	}
	cents := intent.AmountReceived
	if cents == 0 {
		cents = intent.Amount
	}
	if !pkgstripe.FromCents(cents).Equal(entry.Amount) {
		s.logg.Warn(s.logg.WithField(logCtx, "intent_amount", pkgstripe.FromCents(cents).StringFixed(2)), "ledger.verification_amount_mismatch")
		return false
	}
	if owner := strings.TrimSpace(intent.Metadata["order_id"]); owner != "" && owner != entry.OrderID.String() {
		s.logg.Warn(s.logg.WithField(logCtx, "intent_order_id", owner), "ledger.verification_order_mismatch")
		return false
	}

	moved, err := s.repo.Transition(ctx, entry.ID, enums.LedgerEntryStatusVerified, map[string]any{
		"external_verified":   true,
		"external_payment_id": ref,
		"verified_at":         s.now().UTC(),
	})
	if err != nil {
		s.logg.Error(logCtx, "ledger.verification_write_failed", err)
		return false
	}
	if !moved {
		return false
	}

	previous := enums.LedgerEntryStatusApproved
	s.audit.Record(ctx, audit.RecordInput{
		EntryID:        entry.ID,
		OrderID:        entry.OrderID,
		Action:         enums.AuditActionVerified,
		PreviousStatus: &previous,
		NewStatus:      enums.LedgerEntryStatusVerified,
		UserID:         approver,
	})
	s.logg.Info(logCtx, "ledger.entry_verified")
	return true
}

func (s *service) VoidEntry(ctx context.Context, input VoidEntryInput) (*EntryResult, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "void reason is required")
	}
	actor := strings.TrimSpace(input.ActorID)
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	entry, err := s.loadEntry(ctx, input.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status == enums.LedgerEntryStatusVoided {
		return nil, alreadyVoidedError()
	}

	moved, err := s.repo.Transition(ctx, entry.ID, enums.LedgerEntryStatusVoided, map[string]any{
		"voided_by":   actor,
		"voided_at":   s.now().UTC(),
		"void_reason": reason,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void ledger entry")
	}
	if !moved {
		return nil, alreadyVoidedError()
	}

	logCtx := s.logg.WithEntryID(s.logg.WithOrderID(ctx, entry.OrderID.String()), entry.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "voided_by", actor), "ledger.entry_voided")
	previous := entry.Status
	s.audit.Record(ctx, audit.RecordInput{
		EntryID:        entry.ID,
		OrderID:        entry.OrderID,
		Action:         enums.AuditActionVoided,
		PreviousStatus: &previous,
		NewStatus:      enums.LedgerEntryStatusVoided,
		UserID:         actor,
		Notes:          &reason,
	})

	updated, err := s.loadEntry(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	result := &EntryResult{Entry: updated}
	result.Summary = s.recomputeAfter(logCtx, entry.OrderID)
	s.mirror.Publish(ctx, mirror.Event{Type: mirror.EventEntryUpdated, OrderID: entry.OrderID, Entry: updated, Summary: result.Summary})
	return result, nil
}

func (s *service) GetEntry(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	return s.loadEntry(ctx, entryID)
}

func (s *service) ListEntries(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *params.Status)
	}
	if params.TransactionType != nil && !params.TransactionType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction_type %q", *params.TransactionType)
	}
	if params.OrderID != nil {
		if _, err := s.loadOrder(ctx, *params.OrderID); err != nil {
			return nil, err
		}
	}

	query := listQuery{
		OrderID:         params.OrderID,
		Status:          params.Status,
		TransactionType: params.TransactionType,
		IncludeVoided:   params.IncludeVoided,
		Limit:           params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	entries, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	result := &ListResult{Items: make([]EntryDTO, 0, len(entries))}
	for _, entry := range entries {
		result.Items = append(result.Items, NewEntryDTO(entry))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) FindByExternalPaymentID(ctx context.Context, transactionType enums.TransactionType, externalID string) (*models.LedgerEntry, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external payment id is required")
	}
	entry, err := s.repo.FindByExternalPaymentID(ctx, transactionType, externalID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find ledger entry by external id")
	}
	return entry, nil
}

func (s *service) HasConfirmedPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	entries, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	for _, entry := range entries {
		if entry.TransactionType == enums.TransactionTypePayment && entry.Status.IsConfirmed() {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) GetSummary(ctx context.Context, orderID uuid.UUID) (*SummaryDTO, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dto := NewOrderSummaryDTO(*order)
	return &dto, nil
}

func (s *service) Recompute(ctx context.Context, orderID uuid.UUID) (*models.OrderLedgerSummary, error) {
	return s.reconciler.Recompute(ctx, orderID)
}

// recomputeAfter rebuilds the summary once a mutation has committed. A failure
// leaves the committed entry in place and is repaired by recalculation.
func (s *service) recomputeAfter(ctx context.Context, orderID uuid.UUID) *models.OrderLedgerSummary {
	summary, err := s.reconciler.Recompute(ctx, orderID)
	if err != nil {
		s.logg.Error(ctx, "ledger.recompute_failed", err)
		return nil
	}
	return summary
}

func (s *service) loadEntry(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger entry")
	}
	return entry, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func normalizeCreateInput(input *CreateEntryInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}
	input.CreatedBy = strings.TrimSpace(input.CreatedBy)
	if input.CreatedBy == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "created_by is required")
	}
	if !input.TransactionType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction_type %q", input.TransactionType)
	}
	if !input.Method.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid method %q", input.Method)
	}
	if !input.Category.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid category %q", input.Category)
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount cannot have more than two decimal places")
	}

	input.ExternalPaymentID = trimmedOrNil(input.ExternalPaymentID)
	input.ExternalEventID = trimmedOrNil(input.ExternalEventID)
	input.ProofFile = trimmedOrNil(input.ProofFile)
	input.Notes = trimmedOrNil(input.Notes)

	if input.Method.RequiresProof() && input.ProofFile == nil {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "proof_file is required for %s entries", input.Method)
	}
	if input.Method == enums.PaymentMethodProviderCharge && input.ExternalPaymentID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "external_payment_id is required for provider charges")
	}
	if input.SourceEntryID != nil && input.TransactionType != enums.TransactionTypeRefund {
		return pkgerrors.New(pkgerrors.CodeValidation, "source_entry_id is only valid on refunds")
	}

	switch input.Status {
	case "":
		input.Status = enums.LedgerEntryStatusPending
	case enums.LedgerEntryStatusPending, enums.LedgerEntryStatusApproved:
	case enums.LedgerEntryStatusVerified:
		if !input.ExternalVerified {
			return pkgerrors.New(pkgerrors.CodeValidation, "verified entries require external verification")
		}
	default:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "entries cannot be created as %q", input.Status)
	}
	return nil
}

func buildEntry(input CreateEntryInput, order *models.Order, now time.Time) *models.LedgerEntry {
	entry := &models.LedgerEntry{
		ID:                uuid.New(),
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		TransactionType:   input.TransactionType,
		Amount:            input.Amount,
		Method:            input.Method,
		Category:          input.Category,
		Status:            input.Status,
		ExternalPaymentID: input.ExternalPaymentID,
		ExternalVerified:  input.ExternalVerified && input.Status == enums.LedgerEntryStatusVerified,
		ExternalEventID:   input.ExternalEventID,
		SourceEntryID:     input.SourceEntryID,
		ProofFile:         input.ProofFile,
		Notes:             input.Notes,
		BalanceAfter:      decimal.Zero,
		DepositAtTime:     order.DepositRequired,
		CreatedBy:         input.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	switch input.Status {
	case enums.LedgerEntryStatusApproved:
		entry.ApprovedBy = &entry.CreatedBy
		entry.ApprovedAt = &now
	case enums.LedgerEntryStatusVerified:
		entry.VerifiedAt = &now
	}
	return entry
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func duplicateExternalError(externalID string, existing uuid.UUID) error {
	details := map[string]any{"external_payment_id": externalID}
	if existing != uuid.Nil {
		details["entry_id"] = existing.String()
	}
	return pkgerrors.Newf(pkgerrors.CodeConflict, "ledger entry for %s already exists", externalID).WithDetails(details)
}

func notPendingError(status enums.LedgerEntryStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, "only pending entries can be approved (status %s)", status).
		WithDetails(map[string]any{"status": status.String()})
}

func alreadyVoidedError() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "ledger entry already voided")
}
