package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/deposit-ledger/internal/sequence"
	"github.com/angelmondragon/deposit-ledger/pkg/db"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
)

// Service exposes the order operations the ledger surface needs.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateDepositRequired(ctx context.Context, orderID uuid.UUID, deposit decimal.Decimal) (*models.Order, error)
	RegisterPaymentLink(ctx context.Context, input RegisterPaymentLinkInput) (*models.PaymentLink, error)
}

type ServiceParams struct {
	Repo              Repository
	Sequence          sequence.Generator
	Recomputer        SummaryRecomputer
	TransactionRunner txRunner
	OrderCounter      string
}

type service struct {
	repo       Repository
	sequence   sequence.Generator
	recomputer SummaryRecomputer
	tx         txRunner
	counter    string
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Sequence == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sequence generator required")
	}
	if params.Recomputer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "summary recomputer required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	counter := strings.TrimSpace(params.OrderCounter)
	if counter == "" {
		counter = "order_number"
	}
	return &service{
		repo:       params.Repo,
		sequence:   params.Sequence,
		recomputer: params.Recomputer,
		tx:         params.TransactionRunner,
		counter:    counter,
		now:        time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer_name is required")
	}
	if input.DepositRequired.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit_required cannot be negative")
	}
	status := input.Status
	if status == "" {
		status = enums.OrderStatusDraft
	}
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}

	now := s.now().UTC()
	order := &models.Order{
		CustomerName:    name,
		Status:          status,
		PaymentStatus:   enums.PaymentStatusPending,
		DepositRequired: input.DepositRequired,
		OriginalDeposit: input.DepositRequired,
		LedgerSummary: models.OrderLedgerSummary{
			DepositRequired: input.DepositRequired,
			OriginalDeposit: input.DepositRequired,
			Balance:         input.DepositRequired,
			BalanceStatus:   enums.BalanceStatusUnderpaid,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.DepositRequired.IsZero() {
		order.LedgerSummary.BalanceStatus = enums.BalanceStatusPaid
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.sequence.Next(ctx, tx, s.counter)
		if err != nil {
			return err
		}
		order.OrderNumber = sequence.FormatOrderNumber(n)
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return order, nil
}

// UpdateDepositRequired changes the amount owed and rebuilds the summary so the
// balance reflects the new deposit immediately.
func (s *service) UpdateDepositRequired(ctx context.Context, orderID uuid.UUID, deposit decimal.Decimal) (*models.Order, error) {
	if deposit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit_required cannot be negative")
	}
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDepositRequired(ctx, orderID, deposit); err != nil {
		return nil, mapLookupError(err)
	}
	if _, err := s.recomputer.Recompute(ctx, orderID); err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func (s *service) RegisterPaymentLink(ctx context.Context, input RegisterPaymentLinkInput) (*models.PaymentLink, error) {
	linkID := strings.TrimSpace(input.PaymentLinkID)
	if linkID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_link_id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if strings.TrimSpace(input.CreatedBy) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "created_by is required")
	}
	if _, err := s.Get(ctx, input.OrderID); err != nil {
		return nil, err
	}

	link := &models.PaymentLink{
		OrderID:             input.OrderID,
		StripePaymentLinkID: linkID,
		Amount:              input.Amount,
		CreatedBy:           input.CreatedBy,
		CreatedAt:           s.now().UTC(),
	}
	if err := s.repo.CreatePaymentLink(ctx, link); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment link already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment link")
	}
	return link, nil
}

func mapLookupError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
