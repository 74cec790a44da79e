package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/obedyakpa0-dev/VitalAndGreen/api/responses"
	pkgerrors "github.com/obedyakpa0-dev/VitalAndGreen/pkg/errors"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/paystack"
)

// maxWebhookBytes bounds the raw body read before signature verification.
const maxWebhookBytes = 1 << 20

type PaystackWebhookService interface {
	Handle(ctx context.Context, rawBody []byte, signature string) error
}

// PaystackWebhook hands the exact raw body to the service; re-encoding it
// would break the HMAC. Acknowledgements are a bare {"received":true}.
func PaystackWebhook(svc PaystackWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := svc.Handle(ctx, payload, r.Header.Get(paystack.SignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}
