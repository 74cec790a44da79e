package controllers

import (
	"net/http"
	"strings"

	"github.com/obedyakpa0-dev/VitalAndGreen/api/responses"
	"github.com/obedyakpa0-dev/VitalAndGreen/api/validators"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/payments"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

type initializePaymentRequest struct {
	Customer        types.Customer        `json:"customer"`
	Items           types.CartItems       `json:"items"`
	Totals          types.Totals          `json:"totals"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress"`
	Currency        string                `json:"currency,omitempty"`
}

// PaymentInitialize opens a provider checkout for the submitted cart.
func PaymentInitialize(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		var payload initializePaymentRequest
		if err := validators.DecodeJSONBodyLenient(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initialize(r.Context(), payments.InitializeInput{
			Customer:        payload.Customer.Normalize(),
			Items:           payload.Items,
			Totals:          payload.Totals,
			ShippingAddress: payload.ShippingAddress,
			Currency:        enums.Currency(strings.ToUpper(strings.TrimSpace(payload.Currency))),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentVerify answers the storefront after the provider redirect.
func PaymentVerify(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		query := r.URL.Query()
		reference := strings.TrimSpace(query.Get("reference"))
		if reference == "" {
			reference = strings.TrimSpace(query.Get("trxref"))
		}
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference is required"))
			return
		}

		result, err := svc.Verify(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
