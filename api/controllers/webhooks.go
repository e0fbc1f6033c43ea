package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mekongcart/storefront-backend/api/responses"
	"github.com/mekongcart/storefront-backend/api/validators"
	"github.com/mekongcart/storefront-backend/internal/payments"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
	"github.com/mekongcart/storefront-backend/pkg/logger"
	redispkg "github.com/mekongcart/storefront-backend/pkg/redis"
)

const callbackGuardScope = "payment_callback"

// PaymentCallback receives the gateway's server-to-server notification and
// hands the verified payload to the reconciler. The redis guard short-circuits
// replays before touching the database; the reconciler stays idempotent on its
// own, so a lost guard entry is harmless.
func PaymentCallback(rec payments.Reconciler, guard redispkg.IdempotencyStore, dedupeTTL time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if rec == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		var payload paymentCallbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		guardKey := guard.IdempotencyKey(callbackGuardScope, payload.dedupeID())
		fresh, err := guard.SetNX(ctx, guardKey, "1", dedupeTTL)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if !fresh {
			responses.WriteSuccess(w, paymentCallbackResponse{Received: true})
			return
		}

		outcome, err := rec.Process(ctx, payments.Callback{
			MerchantCode:  payload.MerchantCode,
			TxnRef:        payload.TxnRef,
			Amount:        payload.Amount,
			ResponseCode:  payload.ResponseCode,
			Message:       payload.Message,
			TransactionNo: payload.TransactionNo,
			Signature:     payload.Signature,
		})
		if err != nil {
			_ = guard.Del(ctx, guardKey)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("payment callback %s processed", payload.TxnRef))
		}
		responses.WriteSuccess(w, paymentCallbackResponse{
			Received: true,
			OrderID:  outcome.OrderID,
			Status:   outcome.Status.String(),
		})
	}
}

type paymentCallbackRequest struct {
	MerchantCode  string `json:"merchant_code" validate:"required"`
	TxnRef        string `json:"txn_ref" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,min=1"`
	ResponseCode  string `json:"response_code" validate:"required"`
	Message       string `json:"message"`
	TransactionNo string `json:"transaction_no" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
}

func (req paymentCallbackRequest) dedupeID() string {
	return strings.Join([]string{req.TxnRef, req.TransactionNo, req.ResponseCode}, ":")
}

type paymentCallbackResponse struct {
	Received bool   `json:"received"`
	OrderID  string `json:"order_id,omitempty"`
	Status   string `json:"status,omitempty"`
}
