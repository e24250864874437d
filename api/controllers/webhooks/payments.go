package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/avigneron/cavebox-backend/api/responses"
	"github.com/avigneron/cavebox-backend/internal/webhooks/payments"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

// PaymentWebhook ingests payment gateway events. Unknown payload fields
// are tolerated since the gateway adds fields without notice, and the
// gateway retries any non-2xx response.
func PaymentWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			io.Copy(io.Discard, r.Body)
		}()

		var event payments.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event payload"))
			return
		}

		if err := svc.HandleEvent(r.Context(), event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
