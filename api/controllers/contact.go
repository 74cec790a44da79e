package controllers

import (
	"net/http"

	"github.com/obedyakpa0-dev/VitalAndGreen/api/responses"
	"github.com/obedyakpa0-dev/VitalAndGreen/api/validators"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/contact"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
)

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ContactSend relays the contact form; the service owns field validation so
// the storefront gets its exact messages.
func ContactSend(svc contact.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contact service unavailable"))
			return
		}

		var payload contactRequest
		if err := validators.DecodeJSONBodyLenient(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err := svc.Send(r.Context(), contact.Message{
			Name:    validators.SanitizeString(payload.Name, 200),
			Email:   validators.SanitizeString(payload.Email, 320),
			Message: payload.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"message": "Message sent successfully"})
	}
}
