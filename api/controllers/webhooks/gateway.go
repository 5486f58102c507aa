package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/packfinderz-payouts/api/responses"
	"github.com/angelmondragon/packfinderz-payouts/internal/gateway"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

// maxCallbackBytes caps the body read from the gateway.
const maxCallbackBytes = 1 << 20

type GatewayCallbackService interface {
	HandleGatewayCallback(ctx context.Context, cb *gateway.Callback) (bool, error)
}

// GatewayWebhook applies asynchronous transfer results. Redelivered events
// are acknowledged without changing the payout.
func GatewayWebhook(svc GatewayCallbackService, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := gateway.VerifySignature(secret, payload, r.Header.Get(gateway.SignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid gateway signature"))
			return
		}

		cb, err := gateway.DecodeCallback(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithFields(ctx, map[string]any{
			"gateway_event_id": cb.EventID,
			"payout_id":        cb.PayoutID.String(),
		})

		applied, err := svc.HandleGatewayCallback(ctx, cb)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if applied {
			logg.Info(ctx, "gateway callback applied")
		} else {
			logg.Debug(ctx, "gateway callback already processed")
		}
		responses.WriteSuccess(w, map[string]bool{"applied": applied})
	}
}
