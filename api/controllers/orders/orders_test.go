package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/api/middleware"
	internalorders "github.com/angelmondragon/deposit-ledger/internal/orders"
	"github.com/angelmondragon/deposit-ledger/pkg/db/models"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
)

type stubOrdersService struct {
	create   func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	get      func(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	deposit  func(ctx context.Context, orderID uuid.UUID, deposit decimal.Decimal) (*models.Order, error)
	linkFunc func(ctx context.Context, input internalorders.RegisterPaymentLinkInput) (*models.PaymentLink, error)
}

func (s *stubOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	return s.create(ctx, input)
}

func (s *stubOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.get(ctx, orderID)
}

func (s *stubOrdersService) UpdateDepositRequired(ctx context.Context, orderID uuid.UUID, deposit decimal.Decimal) (*models.Order, error) {
	return s.deposit(ctx, orderID, deposit)
}

func (s *stubOrdersService) RegisterPaymentLink(ctx context.Context, input internalorders.RegisterPaymentLinkInput) (*models.PaymentLink, error) {
	return s.linkFunc(ctx, input)
}

func withOrderRoute(req *http.Request, orderID string) *http.Request {
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("orderId", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))
}

func TestCreateOrder(t *testing.T) {
	var captured internalorders.CreateOrderInput
	svc := &stubOrdersService{
		create: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			captured = input
			return &models.Order{
				ID:              uuid.New(),
				OrderNumber:     "ORD-000001",
				CustomerName:    input.CustomerName,
				Status:          enums.OrderStatusDraft,
				DepositRequired: input.DepositRequired,
			}, nil
		},
	}

	body := `{"customer_name":"  Hill Farm  ","deposit_required":"5000.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.CustomerName != "Hill Farm" {
		t.Fatalf("expected trimmed customer name, got %q", captured.CustomerName)
	}
	if !captured.DepositRequired.Equal(decimal.RequireFromString("5000")) {
		t.Fatalf("unexpected deposit %s", captured.DepositRequired)
	}

	var envelope struct {
		Data internalorders.OrderDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderNumber != "ORD-000001" {
		t.Fatalf("unexpected order number %q", envelope.Data.OrderNumber)
	}
}

func TestCreateOrderRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrdersService{
		create: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"customer_name":"A","deposit_required":"10","status":"shipped"}`))
	resp := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubOrdersService{
		get: func(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}
	orderID := uuid.New()
	req := withOrderRoute(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil), orderID.String())
	resp := httptest.NewRecorder()
	Get(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestGetOrderInvalidID(t *testing.T) {
	req := withOrderRoute(httptest.NewRequest(http.MethodGet, "/api/v1/orders/nope", nil), "nope")
	resp := httptest.NewRecorder()
	Get(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUpdateDeposit(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		deposit: func(ctx context.Context, id uuid.UUID, deposit decimal.Decimal) (*models.Order, error) {
			if id != orderID {
				t.Fatalf("unexpected order id %s", id)
			}
			return &models.Order{ID: id, DepositRequired: deposit}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+orderID.String()+"/deposit", strings.NewReader(`{"deposit_required":"7500.50"}`))
	req = withOrderRoute(req, orderID.String())
	resp := httptest.NewRecorder()
	UpdateDeposit(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"deposit_required":"7500.5"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestRegisterPaymentLink(t *testing.T) {
	orderID := uuid.New()
	var captured internalorders.RegisterPaymentLinkInput
	svc := &stubOrdersService{
		linkFunc: func(ctx context.Context, input internalorders.RegisterPaymentLinkInput) (*models.PaymentLink, error) {
			captured = input
			return &models.PaymentLink{
				ID:                  uuid.New(),
				OrderID:             input.OrderID,
				StripePaymentLinkID: input.PaymentLinkID,
				Amount:              input.Amount,
				CreatedBy:           input.CreatedBy,
			}, nil
		},
	}
	body := `{"payment_link_id":"plink_123","amount":"2500"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/payment-links", strings.NewReader(body))
	req = withOrderRoute(req, orderID.String())
	req = req.WithContext(middleware.WithUserID(req.Context(), "rep-9"))
	resp := httptest.NewRecorder()
	RegisterPaymentLink(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.CreatedBy != "rep-9" || captured.OrderID != orderID {
		t.Fatalf("unexpected input %+v", captured)
	}
	if !strings.Contains(resp.Body.String(), `"amount":"2500.00"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestRegisterPaymentLinkRejectsForeignID(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"payment_link_id":"cs_123","amount":"1"}`))
	req = withOrderRoute(req, orderID.String())
	resp := httptest.NewRecorder()
	RegisterPaymentLink(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
