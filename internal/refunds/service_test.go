package refunds

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/internal/ledger"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	pkgstripe "github.com/angelmondragon/deposit-ledger/pkg/stripe"
)

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, code, actorID string) (string, error) {
	if code != "ok" {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "invalid approval code")
	}
	return "ops", nil
}

type fakeLedger struct {
	created    []ledger.CreateEntryInput
	byExternal map[string]*models.LedgerEntry
	recomputes int
	createErr  error
	store      *fakeEntries
}

func (f *fakeLedger) CreateEntry(ctx context.Context, input ledger.CreateEntryInput) (*ledger.EntryResult, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	entry := &models.LedgerEntry{
		ID:                uuid.New(),
		OrderID:           input.OrderID,
		TransactionType:   input.TransactionType,
		Amount:            input.Amount,
		Status:            input.Status,
		SourceEntryID:     input.SourceEntryID,
		ExternalPaymentID: input.ExternalPaymentID,
		ExternalEventID:   input.ExternalEventID,
	}
	if f.store != nil {
		f.store.entries = append(f.store.entries, *entry)
	}
	return &ledger.EntryResult{Entry: entry, Verified: true}, nil
}

func (f *fakeLedger) FindByExternalPaymentID(ctx context.Context, transactionType enums.TransactionType, externalID string) (*models.LedgerEntry, error) {
	return f.byExternal[string(transactionType)+":"+externalID], nil
}

func (f *fakeLedger) Recompute(ctx context.Context, orderID uuid.UUID) (*models.OrderLedgerSummary, error) {
	f.recomputes++
	return &models.OrderLedgerSummary{}, nil
}

type fakeEntries struct {
	entries []models.LedgerEntry
}

func (f *fakeEntries) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	return f.entries, nil
}

type fakeOrders struct {
	known uuid.UUID
}

func (f *fakeOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id != f.known {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Order{ID: id}, nil
}

type fakeStripe struct {
	requests []pkgstripe.RefundRequest
	failOn   int
	refunds  map[string]*stripe.Refund
}

func (f *fakeStripe) CreateRefund(ctx context.Context, req pkgstripe.RefundRequest) (*stripe.Refund, error) {
	f.requests = append(f.requests, req)
	if f.failOn > 0 && len(f.requests) == f.failOn {
		return nil, errors.New("card_declined")
	}
	return &stripe.Refund{ID: "re_" + req.PaymentIntentID, Amount: req.AmountCents, Status: stripe.RefundStatusSucceeded}, nil
}

func (f *fakeStripe) GetRefund(ctx context.Context, id string) (*stripe.Refund, error) {
	r, ok := f.refunds[id]
	if !ok {
		return nil, errors.New("resource_missing")
	}
	return r, nil
}

type fixture struct {
	svc     Service
	ledger  *fakeLedger
	stripe  *fakeStripe
	orderID uuid.UUID
	sources []uuid.UUID
}

func newFixture(t *testing.T, amounts ...string) *fixture {
	t.Helper()
	orderID := uuid.New()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]models.LedgerEntry, 0, len(amounts))
	ids := make([]uuid.UUID, 0, len(amounts))
	for i, amount := range amounts {
		pi := "pi_" + string(rune('a'+i))
		id := uuid.New()
		ids = append(ids, id)
		entries = append(entries, models.LedgerEntry{
			ID:                id,
			OrderID:           orderID,
			TransactionType:   enums.TransactionTypePayment,
			Method:            enums.PaymentMethodProviderCharge,
			Status:            enums.LedgerEntryStatusVerified,
			Amount:            d(amount),
			ExternalPaymentID: &pi,
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		})
	}

	store := &fakeEntries{entries: entries}
	fl := &fakeLedger{byExternal: map[string]*models.LedgerEntry{}, store: store}
	fs := &fakeStripe{refunds: map[string]*stripe.Refund{}}
	svc, err := NewService(ServiceParams{
		Ledger:    fl,
		Entries:   store,
		Orders:    &fakeOrders{known: orderID},
		Stripe:    fs,
		Approvals: stubVerifier{},
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
	})
	require.NoError(t, err)
	return &fixture{svc: svc, ledger: fl, stripe: fs, orderID: orderID, sources: ids}
}

func TestIssueSplitsAcrossSources(t *testing.T) {
	f := newFixture(t, "30", "50")

	res, err := f.svc.Issue(context.Background(), IssueInput{OrderID: f.orderID, Amount: d("60"), ActorID: "mgr-1", ApprovalCode: "ok", Reason: "cancelled shed", IdempotencyKey: "req-1"})
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 2)
	assert.Nil(t, res.Failed)
	assert.False(t, res.RequiresManualRefund)
	assert.NotNil(t, res.Summary)

	require.Len(t, f.stripe.requests, 2)
	assert.Equal(t, "pi_a", f.stripe.requests[0].PaymentIntentID)
	assert.Equal(t, int64(3000), f.stripe.requests[0].AmountCents)
	assert.Equal(t, "req-1:"+f.sources[0].String(), f.stripe.requests[0].IdempotencyKey)
	assert.Equal(t, int64(3000), f.stripe.requests[1].AmountCents)
	assert.Equal(t, "req-1:"+f.sources[1].String(), f.stripe.requests[1].IdempotencyKey)

	require.Len(t, f.ledger.created, 2)
	for i, in := range f.ledger.created {
		assert.Equal(t, enums.TransactionTypeRefund, in.TransactionType)
		assert.Equal(t, enums.LedgerEntryStatusVerified, in.Status)
		assert.Equal(t, enums.LedgerCategoryRefund, in.Category)
		require.NotNil(t, in.SourceEntryID)
		assert.Equal(t, f.sources[i], *in.SourceEntryID)
		require.NotNil(t, in.ExternalPaymentID)
		assert.Equal(t, res.Succeeded[i].RefundID, *in.ExternalPaymentID)
		require.NotNil(t, in.ExternalEventID)
		assert.Equal(t, f.stripe.requests[i].IdempotencyKey, *in.ExternalEventID)
	}
}

func TestIssueRetryWithSameKeyResumes(t *testing.T) {
	f := newFixture(t, "30", "50")
	f.stripe.failOn = 2
	ctx := context.Background()
	in := IssueInput{OrderID: f.orderID, Amount: d("60"), ActorID: "mgr-1", ApprovalCode: "ok", IdempotencyKey: "req-9"}

	_, err := f.svc.Issue(ctx, in)
	require.Error(t, err)
	require.Len(t, f.stripe.requests, 2)
	require.Len(t, f.ledger.created, 1)

	res, err := f.svc.Issue(ctx, in)
	require.NoError(t, err)
	require.Len(t, f.stripe.requests, 3)
	retried := f.stripe.requests[2]
	assert.Equal(t, f.stripe.requests[1].IdempotencyKey, retried.IdempotencyKey)
	assert.Equal(t, "pi_b", retried.PaymentIntentID)
	assert.Equal(t, int64(3000), retried.AmountCents)

	require.Len(t, res.Succeeded, 2)
	assert.Equal(t, f.sources[0], res.Succeeded[0].SourceEntryID)
	assert.Equal(t, "pi_a", res.Succeeded[0].ExternalPaymentID)
	assert.Equal(t, f.sources[1], res.Succeeded[1].SourceEntryID)

	total := d("0")
	for _, created := range f.ledger.created {
		total = total.Add(created.Amount)
	}
	assert.True(t, total.Equal(d("60")), total.String())

	again, err := f.svc.Issue(ctx, in)
	require.NoError(t, err)
	assert.Len(t, f.stripe.requests, 3)
	assert.Len(t, f.ledger.created, 2)
	assert.Len(t, again.Succeeded, 2)
	assert.False(t, again.RequiresManualRefund)
}

func TestIssueDifferentKeyStartsFresh(t *testing.T) {
	f := newFixture(t, "30", "50")
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, IssueInput{OrderID: f.orderID, Amount: d("20"), ActorID: "mgr-1", ApprovalCode: "ok", IdempotencyKey: "first"})
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, IssueInput{OrderID: f.orderID, Amount: d("20"), ActorID: "mgr-1", ApprovalCode: "ok", IdempotencyKey: "second"})
	require.NoError(t, err)

	require.Len(t, f.stripe.requests, 3)
	assert.Equal(t, "pi_a", f.stripe.requests[1].PaymentIntentID)
	assert.Equal(t, int64(1000), f.stripe.requests[1].AmountCents)
	assert.Equal(t, "pi_b", f.stripe.requests[2].PaymentIntentID)
	assert.Equal(t, int64(1000), f.stripe.requests[2].AmountCents)
	assert.NotEqual(t, f.stripe.requests[0].IdempotencyKey, f.stripe.requests[1].IdempotencyKey)
}

func TestIssueStopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, "30", "50", "70")
	f.stripe.failOn = 2

	res, err := f.svc.Issue(context.Background(), IssueInput{OrderID: f.orderID, Amount: d("150"), ActorID: "mgr-1", ApprovalCode: "ok"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	require.NotNil(t, res)
	require.Len(t, res.Succeeded, 1)
	assert.True(t, res.Succeeded[0].Amount.Equal(d("30")))
	require.NotNil(t, res.Failed)
	assert.Equal(t, f.sources[1], res.Failed.SourceEntryID)
	assert.Contains(t, res.Failed.Error, "card_declined")
	require.Len(t, res.Remaining, 1)
	assert.True(t, res.Remaining[0].Amount.Equal(d("70")))
	assert.Len(t, f.stripe.requests, 2)
	assert.Len(t, f.ledger.created, 1)
	assert.Equal(t, 1, f.ledger.recomputes)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	breakdown, ok := typed.Details().(Breakdown)
	require.True(t, ok)
	assert.Len(t, breakdown.Succeeded, 1)
	require.NotNil(t, breakdown.Failed)
	assert.Equal(t, "50.00", breakdown.Failed.Amount)
}

func TestIssueFlagsManualRemainder(t *testing.T) {
	f := newFixture(t, "30", "50")

	res, err := f.svc.Issue(context.Background(), IssueInput{OrderID: f.orderID, Amount: d("90"), ActorID: "mgr-1", ApprovalCode: "ok"})
	require.NoError(t, err)
	assert.True(t, res.RequiresManualRefund)
	assert.True(t, res.Unallocated.Equal(d("10")))
	assert.Len(t, res.Succeeded, 2)
}

func TestIssueRejections(t *testing.T) {
	f := newFixture(t, "30")
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, IssueInput{OrderID: f.orderID, Amount: d("10"), ActorID: "mgr-1", ApprovalCode: "bad"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Issue(ctx, IssueInput{OrderID: f.orderID, Amount: d("0"), ActorID: "mgr-1", ApprovalCode: "ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Issue(ctx, IssueInput{OrderID: uuid.New(), Amount: d("10"), ActorID: "mgr-1", ApprovalCode: "ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Empty(t, f.stripe.requests)

	empty := newFixture(t)
	_, err = empty.svc.Issue(ctx, IssueInput{OrderID: empty.orderID, Amount: d("10"), ActorID: "mgr-1", ApprovalCode: "ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestVerifyRecordsDashboardRefund(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()
	payment := &models.LedgerEntry{ID: f.sources[0], OrderID: f.orderID}
	f.ledger.byExternal["payment:pi_a"] = payment
	f.stripe.refunds["re_abc123"] = &stripe.Refund{ID: "re_abc123", Amount: 4550, Status: stripe.RefundStatusSucceeded, PaymentIntent: &stripe.PaymentIntent{ID: "pi_a"}}
	f.stripe.refunds["re_pending1"] = &stripe.Refund{ID: "re_pending1", Amount: 100, Status: stripe.RefundStatusPending}

	res, err := f.svc.Verify(ctx, VerifyInput{OrderID: f.orderID, RefundID: "re_abc123", ActorID: "mgr-1", ApprovalCode: "ok"})
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	require.Len(t, f.ledger.created, 1)
	in := f.ledger.created[0]
	assert.True(t, in.Amount.Equal(d("45.50")))
	require.NotNil(t, in.SourceEntryID)
	assert.Equal(t, f.sources[0], *in.SourceEntryID)
	assert.True(t, in.ExternalVerified)

	_, err = f.svc.Verify(ctx, VerifyInput{OrderID: f.orderID, RefundID: "ch_123", ActorID: "mgr-1", ApprovalCode: "ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Verify(ctx, VerifyInput{OrderID: f.orderID, RefundID: "re_pending1", ActorID: "mgr-1", ApprovalCode: "ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Verify(ctx, VerifyInput{OrderID: f.orderID, RefundID: "re_missing", ActorID: "mgr-1", ApprovalCode: "ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	f.ledger.byExternal["refund:re_abc123"] = &models.LedgerEntry{ID: uuid.New()}
	_, err = f.svc.Verify(ctx, VerifyInput{OrderID: f.orderID, RefundID: "re_abc123", ActorID: "mgr-1", ApprovalCode: "ok"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "already recorded")

	_, err = f.svc.Verify(ctx, VerifyInput{OrderID: f.orderID, RefundID: "re_other", ActorID: "mgr-1", ApprovalCode: "nope"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestVerifyLosingConcurrentInsertReportsAlreadyRecorded(t *testing.T) {
	f := newFixture(t, "100")
	f.stripe.refunds["re_race1"] = &stripe.Refund{ID: "re_race1", Amount: 2000, Status: stripe.RefundStatusSucceeded}
	f.ledger.createErr = pkgerrors.New(pkgerrors.CodeConflict, "external payment id re_race1 already recorded")

	_, err := f.svc.Verify(context.Background(), VerifyInput{OrderID: f.orderID, RefundID: "re_race1", ActorID: "mgr-1", ApprovalCode: "ok"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "already recorded")
}
