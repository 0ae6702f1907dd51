package ledger

import (
	"net/http"

	"github.com/angelmondragon/deposit-ledger/api/responses"
	"github.com/angelmondragon/deposit-ledger/api/validators"
	internalledger "github.com/angelmondragon/deposit-ledger/internal/ledger"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
)

// Summary returns the stored ledger summary of an order without recomputing it.
func Summary(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.GetSummary(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Recalculate forces a rebuild of the order summary from its entries.
func Recalculate(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.Recompute(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.GetSummary(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
