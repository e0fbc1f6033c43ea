package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/internal/orders"
	"github.com/mekongcart/storefront-backend/pkg/db/models"
	"github.com/mekongcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
	"github.com/mekongcart/storefront-backend/pkg/logger"
	"github.com/mekongcart/storefront-backend/pkg/metrics"
	"github.com/mekongcart/storefront-backend/pkg/outbox"
)

// Callback is the flat field set the provider posts to the notify URL.
type Callback struct {
	MerchantCode  string
	TxnRef        string
	Amount        int64
	ResponseCode  string
	Message       string
	TransactionNo string
	Signature     string
}

// CallbackOutcome reports what a processed callback did to the order.
type CallbackOutcome struct {
	OrderID string
	Status  enums.OrderStatus
	Applied bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Reconciler applies verified gateway callbacks to orders.
type Reconciler interface {
	Process(ctx context.Context, cb Callback) (*CallbackOutcome, error)
}

// ReconcilerParams collects the reconciler dependencies.
type ReconcilerParams struct {
	Tx         txRunner
	OrdersRepo orders.Repository
	Outbox     outboxEmitter
	Secret     string
	Logger     *logger.Logger
	Metrics    *metrics.CheckoutMetrics
}

type reconciler struct {
	tx      txRunner
	repo    orders.Repository
	outbox  outboxEmitter
	secret  string
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics
}

// NewReconciler builds the callback reconciler.
func NewReconciler(p ReconcilerParams) (Reconciler, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Secret == "" {
		return nil, fmt.Errorf("gateway secret required")
	}
	return &reconciler{
		tx:      p.Tx,
		repo:    p.OrdersRepo,
		outbox:  p.Outbox,
		secret:  p.Secret,
		logg:    p.Logger,
		metrics: p.Metrics,
	}, nil
}

// signedParams rebuilds the canonical field set the provider signed,
// excluding the signature itself.
func (cb Callback) signedParams() map[string]string {
	return map[string]string{
		"merchant_code":  cb.MerchantCode,
		"txn_ref":        cb.TxnRef,
		"amount":         strconv.FormatInt(cb.Amount, 10),
		"response_code":  cb.ResponseCode,
		"message":        cb.Message,
		"transaction_no": cb.TransactionNo,
	}
}

// Process verifies the callback and transitions the order. The signature
// check fails closed; nothing downstream runs on a mismatch. Replays resolve
// through the conditional status update: the second delivery finds the order
// already transitioned and acks without applying anything.
func (r *reconciler) Process(ctx context.Context, cb Callback) (*CallbackOutcome, error) {
	if !VerifySignature(cb.signedParams(), r.secret, cb.Signature) {
		r.metrics.IncCallback("invalid_signature")
		if r.logg != nil {
			r.logg.Warn(ctx, fmt.Sprintf("payment callback signature mismatch for txn_ref %q", cb.TxnRef))
		}
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "callback signature mismatch")
	}

	order, err := r.repo.FindByPaymentRef(ctx, cb.TxnRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.metrics.IncCallback("unknown_ref")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}

	if cb.Amount != order.TotalAmount*100 {
		r.metrics.IncCallback("amount_mismatch")
		if r.logg != nil {
			r.logg.Warn(r.logg.WithOrderID(ctx, order.ID.String()), "payment callback amount mismatch")
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback amount does not match order")
	}

	if cb.ResponseCode == gatewaySuccessCode {
		return r.applyPaid(ctx, order, cb)
	}
	return r.applyFailed(ctx, order, cb)
}

func (r *reconciler) applyPaid(ctx context.Context, order *models.Order, cb Callback) (*CallbackOutcome, error) {
	paidAt := time.Now()
	applied := false
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := r.repo.WithTx(tx).MarkPaid(ctx, order.ID, paidAt)
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: outbox.OrderPaidData{
				OrderID:       order.ID,
				PaymentRef:    order.PaymentRef,
				TransactionNo: cb.TransactionNo,
				Amount:        order.TotalAmount,
				PaidAt:        paidAt,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying paid callback")
	}

	if applied {
		r.metrics.IncCallback("paid")
	} else {
		r.metrics.IncCallback("replayed")
	}
	if r.logg != nil && applied {
		r.logg.Info(r.logg.WithOrderID(ctx, order.ID.String()), "order payment confirmed")
	}
	return &CallbackOutcome{
		OrderID: order.ID.String(),
		Status:  enums.OrderStatusAwaitingFulfillment,
		Applied: applied,
	}, nil
}

func (r *reconciler) applyFailed(ctx context.Context, order *models.Order, cb Callback) (*CallbackOutcome, error) {
	reason := cb.Message
	if reason == "" {
		reason = "payment failed with code " + cb.ResponseCode
	}
	applied := false
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := r.repo.WithTx(tx).MarkCancelled(ctx, order.ID, enums.OrderStatusAwaitingPayment, reason)
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: outbox.OrderCancelledData{
				OrderID: order.ID,
				Reason:  reason,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying failed callback")
	}

	if applied {
		r.metrics.IncCallback("failed")
	} else {
		r.metrics.IncCallback("replayed")
	}
	if r.logg != nil && applied {
		r.logg.Info(r.logg.WithOrderID(ctx, order.ID.String()), "order cancelled by payment callback")
	}
	return &CallbackOutcome{
		OrderID: order.ID.String(),
		Status:  enums.OrderStatusCancelled,
		Applied: applied,
	}, nil
}
