package orders

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/deposit-ledger/api/middleware"
	"github.com/angelmondragon/deposit-ledger/api/responses"
	"github.com/angelmondragon/deposit-ledger/api/validators"
	internalorders "github.com/angelmondragon/deposit-ledger/internal/orders"
	"github.com/angelmondragon/deposit-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
)

type createRequest struct {
	CustomerName    string          `json:"customer_name" validate:"required"`
	DepositRequired decimal.Decimal `json:"deposit_required"`
	Status          string          `json:"status,omitempty" validate:"omitempty,oneof=draft sent_for_signature signed ready_for_manufacturer cancelled"`
}

type depositRequest struct {
	DepositRequired decimal.Decimal `json:"deposit_required"`
}

type paymentLinkRequest struct {
	PaymentLinkID string          `json:"payment_link_id" validate:"required,startswith=plink_"`
	Amount        decimal.Decimal `json:"amount"`
}

type paymentLinkResponse struct {
	ID            string `json:"id"`
	OrderID       string `json:"order_id"`
	PaymentLinkID string `json:"payment_link_id"`
	Amount        string `json:"amount"`
	CreatedBy     string `json:"created_by"`
}

// Create opens an order the ledger can record money against.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			CustomerName:    validators.SanitizeString(req.CustomerName, 200),
			DepositRequired: req.DepositRequired,
			Status:          enums.OrderStatus(req.Status),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.NewOrderDTO(order))
	}
}

func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderDTO(order))
	}
}

// UpdateDeposit changes the deposit owed; the summary is rebuilt before responding.
func UpdateDeposit(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req depositRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.UpdateDepositRequired(r.Context(), orderID, req.DepositRequired)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderDTO(order))
	}
}

// RegisterPaymentLink ties a hosted payment link to the order so checkout
// webhooks for it can be routed back.
func RegisterPaymentLink(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req paymentLinkRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		link, err := svc.RegisterPaymentLink(r.Context(), internalorders.RegisterPaymentLinkInput{
			OrderID:       orderID,
			PaymentLinkID: req.PaymentLinkID,
			Amount:        req.Amount,
			CreatedBy:     middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, paymentLinkResponse{
			ID:            link.ID.String(),
			OrderID:       link.OrderID.String(),
			PaymentLinkID: link.StripePaymentLinkID,
			Amount:        link.Amount.StringFixed(2),
			CreatedBy:     link.CreatedBy,
		})
	}
}
