package refunds

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/angelmondragon/deposit-ledger/internal/approvals"
	"github.com/angelmondragon/deposit-ledger/internal/ledger"
	"github.com/angelmondragon/deposit-ledger/pkg/db"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/metrics"
	pkgstripe "github.com/angelmondragon/deposit-ledger/pkg/stripe"
)

var refundIDPattern = regexp.MustCompile(`^re_[A-Za-z0-9]+$`)

// LedgerWriter is the slice of the ledger service refunds write through.
type LedgerWriter interface {
	CreateEntry(ctx context.Context, input ledger.CreateEntryInput) (*ledger.EntryResult, error)
	FindByExternalPaymentID(ctx context.Context, transactionType enums.TransactionType, externalID string) (*models.LedgerEntry, error)
	Recompute(ctx context.Context, orderID uuid.UUID) (*models.OrderLedgerSummary, error)
}

type entryLister interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
}

type orderLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// StripeRefunds is the provider surface used to issue and look up refunds.
type StripeRefunds interface {
	CreateRefund(ctx context.Context, req pkgstripe.RefundRequest) (*stripe.Refund, error)
	GetRefund(ctx context.Context, id string) (*stripe.Refund, error)
}

type Service interface {
	Issue(ctx context.Context, input IssueInput) (*IssueResult, error)
	Verify(ctx context.Context, input VerifyInput) (*ledger.EntryResult, error)
}

type ServiceParams struct {
	Ledger    LedgerWriter
	Entries   entryLister
	Orders    orderLookup
	Stripe    StripeRefunds
	Approvals approvals.Verifier
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
}

type service struct {
	ledger    LedgerWriter
	entries   entryLister
	orders    orderLookup
	stripe    StripeRefunds
	approvals approvals.Verifier
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	case params.Entries == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	case params.Stripe == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe refunds client required")
	case params.Approvals == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "approval verifier required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		ledger:    params.Ledger,
		entries:   params.Entries,
		orders:    params.Orders,
		stripe:    params.Stripe,
		approvals: params.Approvals,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Issue refunds amount across the order's provider payments, one provider call
// at a time. It stops at the first failure; the returned result then lists what
// already went through and the error is a DEPENDENCY_ERROR carrying the same
// breakdown in its details.
func (s *service) Issue(ctx context.Context, input IssueInput) (*IssueResult, error) {
	actor := strings.TrimSpace(input.ActorID)
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero")
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot have more than two decimal places")
	}
	if _, err := s.approvals.Verify(ctx, input.ApprovalCode, actor); err != nil {
		return nil, err
	}
	if err := s.ensureOrder(ctx, input.OrderID); err != nil {
		return nil, err
	}

	history, err := s.entries.ListByOrder(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	key := strings.TrimSpace(input.IdempotencyKey)
	prior := recordedUnderKey(history, key)
	outstanding := input.Amount
	for _, issued := range prior {
		outstanding = outstanding.Sub(issued.Amount)
	}

	plan := Allocate(unspentSources(SourcesFromEntries(history), prior), outstanding)
	if len(plan.Allocations) == 0 && len(prior) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no refundable provider payments").
			WithDetails(map[string]any{"requires_manual_refund": true, "unallocated": input.Amount.StringFixed(2)})
	}

	logCtx := s.logg.WithUserID(s.logg.WithOrderID(ctx, input.OrderID.String()), actor)
	result := &IssueResult{
		OrderID:              input.OrderID,
		Requested:            input.Amount,
		Succeeded:            prior,
		Unallocated:          plan.Unallocated,
		RequiresManualRefund: plan.RequiresManualRefund(),
	}
	if len(prior) > 0 {
		s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
			"idempotency_key": key,
			"already_issued":  len(prior),
			"outstanding":     outstanding.StringFixed(2),
		}), "refund.resumed")
	}

	var errs error
	for i, alloc := range plan.Allocations {
		issued, err := s.issueOne(ctx, input, actor, alloc)
		if err != nil {
			errs = multierr.Append(errs, err)
			result.Failed = &FailedRefund{Allocation: alloc, Error: err.Error()}
			if issued != nil {
				result.Failed.RefundID = issued.RefundID
			}
			result.Remaining = append(result.Remaining, plan.Allocations[i+1:]...)
			s.metrics.IncRefund("failed")
			s.logg.Error(s.logg.WithField(logCtx, "source_entry_id", alloc.SourceEntryID.String()), "refund.allocation_failed", err)
			break
		}
		result.Succeeded = append(result.Succeeded, *issued)
		s.metrics.IncRefund("succeeded")
	}

	summary, err := s.ledger.Recompute(ctx, input.OrderID)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else {
		result.Summary = summary
	}

	if result.RequiresManualRefund {
		s.metrics.IncRefund("manual")
		s.logg.Warn(s.logg.WithField(logCtx, "unallocated", plan.Unallocated.StringFixed(2)), "refund.requires_manual_refund")
	}

	if errs != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "refund did not complete").WithDetails(result.Breakdown())
	}
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"amount":  input.Amount.StringFixed(2),
		"sources": len(result.Succeeded),
	}), "refund.issued")
	return result, nil
}

// issueOne refunds a single allocation and records it. A returned IssuedRefund
// alongside an error means the provider refunded but the ledger write failed.
func (s *service) issueOne(ctx context.Context, input IssueInput, actor string, alloc Allocation) (*IssuedRefund, error) {
	req := pkgstripe.RefundRequest{
		PaymentIntentID: alloc.ExternalPaymentID,
		AmountCents:     pkgstripe.ToCents(alloc.Amount),
		Reason:          input.Reason,
		Metadata: map[string]string{
			"order_id":        input.OrderID.String(),
			"source_entry_id": alloc.SourceEntryID.String(),
		},
	}
	var requestKey *string
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		req.IdempotencyKey = allocationKey(key, alloc.SourceEntryID)
		requestKey = &req.IdempotencyKey
	}

	refund, err := s.stripe.CreateRefund(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("refund %s on %s: %w", alloc.Amount.StringFixed(2), alloc.ExternalPaymentID, err)
	}

	issued := &IssuedRefund{Allocation: alloc, RefundID: refund.ID, Status: string(refund.Status)}
	source := alloc.SourceEntryID
	created, err := s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		OrderID:           input.OrderID,
		TransactionType:   enums.TransactionTypeRefund,
		Amount:            alloc.Amount,
		Method:            enums.PaymentMethodProviderCharge,
		Category:          enums.LedgerCategoryRefund,
		Status:            enums.LedgerEntryStatusVerified,
		ExternalPaymentID: &refund.ID,
		ExternalVerified:  true,
		SourceEntryID:     &source,
		ExternalEventID:   requestKey,
		Notes:             optionalString(input.Reason),
		CreatedBy:         actor,
	})
	if err != nil {
		return issued, fmt.Errorf("record refund %s: %w", refund.ID, err)
	}
	issued.EntryID = created.Entry.ID
	issued.PaymentNumber = created.Entry.PaymentNumber
	return issued, nil
}

// Verify records a refund made directly in the provider dashboard once the
// provider confirms it succeeded.
func (s *service) Verify(ctx context.Context, input VerifyInput) (*ledger.EntryResult, error) {
	actor := strings.TrimSpace(input.ActorID)
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	refundID := strings.TrimSpace(input.RefundID)
	if !refundIDPattern.MatchString(refundID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id must look like re_...")
	}
	if _, err := s.approvals.Verify(ctx, input.ApprovalCode, actor); err != nil {
		return nil, err
	}
	if err := s.ensureOrder(ctx, input.OrderID); err != nil {
		return nil, err
	}

	existing, err := s.ledger.FindByExternalPaymentID(ctx, enums.TransactionTypeRefund, refundID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "refund %s already recorded", refundID).
			WithDetails(map[string]any{"entry_id": existing.ID.String()})
	}

	refund, err := s.stripe.GetRefund(ctx, refundID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch refund from stripe")
	}
	if refund.Status != stripe.RefundStatusSucceeded {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "refund %s is %s, not succeeded", refundID, refund.Status)
	}

	var source *uuid.UUID
	if refund.PaymentIntent != nil && refund.PaymentIntent.ID != "" {
		payment, err := s.ledger.FindByExternalPaymentID(ctx, enums.TransactionTypePayment, refund.PaymentIntent.ID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			if payment.OrderID != input.OrderID {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "refund %s belongs to another order", refundID)
			}
			source = &payment.ID
		}
	}

	notes := optionalString(input.Notes)
	result, err := s.ledger.CreateEntry(ctx, ledger.CreateEntryInput{
		OrderID:           input.OrderID,
		TransactionType:   enums.TransactionTypeRefund,
		Amount:            pkgstripe.FromCents(refund.Amount),
		Method:            enums.PaymentMethodProviderCharge,
		Category:          enums.LedgerCategoryRefund,
		Status:            enums.LedgerEntryStatusVerified,
		ExternalPaymentID: &refundID,
		ExternalVerified:  true,
		SourceEntryID:     source,
		Notes:             notes,
		CreatedBy:         actor,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "refund %s already recorded", refundID)
		}
		return nil, err
	}
	s.metrics.IncRefund("verified")
	s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, input.OrderID.String()), "refund_id", refundID), "refund.verified")
	return result, nil
}

// allocationKey is the provider idempotency key for one source of a request.
// It stays stable across retries of the same request.
func allocationKey(requestKey string, source uuid.UUID) string {
	return requestKey + ":" + source.String()
}

// recordedUnderKey returns the live refunds an earlier attempt of the same
// request already recorded, one per source.
func recordedUnderKey(history []models.LedgerEntry, requestKey string) []IssuedRefund {
	if requestKey == "" {
		return nil
	}
	payments := make(map[uuid.UUID]string, len(history))
	for _, entry := range history {
		if entry.TransactionType == enums.TransactionTypePayment && entry.ExternalPaymentID != nil {
			payments[entry.ID] = *entry.ExternalPaymentID
		}
	}

	var out []IssuedRefund
	for _, entry := range history {
		if entry.TransactionType != enums.TransactionTypeRefund ||
			entry.Status == enums.LedgerEntryStatusVoided ||
			entry.SourceEntryID == nil ||
			entry.ExternalEventID == nil ||
			*entry.ExternalEventID != allocationKey(requestKey, *entry.SourceEntryID) {
			continue
		}
		refundID := ""
		if entry.ExternalPaymentID != nil {
			refundID = *entry.ExternalPaymentID
		}
		out = append(out, IssuedRefund{
			Allocation: Allocation{
				SourceEntryID:     *entry.SourceEntryID,
				ExternalPaymentID: payments[*entry.SourceEntryID],
				Amount:            entry.Amount,
			},
			RefundID:      refundID,
			Status:        string(stripe.RefundStatusSucceeded),
			EntryID:       entry.ID,
			PaymentNumber: entry.PaymentNumber,
		})
	}
	return out
}

// unspentSources drops the sources whose key for this request is already used.
func unspentSources(sources []Source, prior []IssuedRefund) []Source {
	if len(prior) == 0 {
		return sources
	}
	used := make(map[uuid.UUID]struct{}, len(prior))
	for _, issued := range prior {
		used[issued.SourceEntryID] = struct{}{}
	}
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		if _, ok := used[src.EntryID]; !ok {
			out = append(out, src)
		}
	}
	return out
}

func (s *service) ensureOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
