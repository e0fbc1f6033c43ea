package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mekongcart/storefront-backend/internal/payments"
	"github.com/mekongcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
)

type stubReconciler struct {
	outcome   *payments.CallbackOutcome
	err       error
	processed []payments.Callback
}

func (s *stubReconciler) Process(ctx context.Context, cb payments.Callback) (*payments.CallbackOutcome, error) {
	s.processed = append(s.processed, cb)
	return s.outcome, s.err
}

type stubGuard struct {
	fresh   bool
	deleted []string
	keys    []string
}

func (s *stubGuard) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.fresh, nil
}

func (s *stubGuard) IdempotencyKey(scope, id string) string {
	return "mc:idempotency:" + scope + ":" + id
}

func (s *stubGuard) Del(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}

func callbackBody(txnRef string) string {
	return `{
		"merchant_code": "MEKONGCART",
		"txn_ref": "` + txnRef + `",
		"amount": 28000000,
		"response_code": "00",
		"message": "approved",
		"transaction_no": "GW123456",
		"signature": "deadbeef"
	}`
}

func postCallback(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestPaymentCallbackProcessed(t *testing.T) {
	t.Parallel()

	orderID := uuid.NewString()
	rec := &stubReconciler{outcome: &payments.CallbackOutcome{
		OrderID: orderID,
		Status:  enums.OrderStatusAwaitingFulfillment,
		Applied: true,
	}}
	guard := &stubGuard{fresh: true}

	resp := postCallback(PaymentCallback(rec, guard, time.Hour, nil), callbackBody("txn-ref-1"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(rec.processed) != 1 {
		t.Fatalf("expected reconciler call, got %d", len(rec.processed))
	}
	if rec.processed[0].TxnRef != "txn-ref-1" {
		t.Fatalf("txn ref not forwarded: %q", rec.processed[0].TxnRef)
	}
	if rec.processed[0].Amount != 28000000 {
		t.Fatalf("amount not forwarded: %d", rec.processed[0].Amount)
	}

	var envelope struct {
		Data paymentCallbackResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Received {
		t.Fatalf("expected received ack")
	}
	if envelope.Data.OrderID != orderID {
		t.Fatalf("unexpected order id: %q", envelope.Data.OrderID)
	}
}

func TestPaymentCallbackReplayShortCircuits(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	guard := &stubGuard{fresh: false}

	resp := postCallback(PaymentCallback(rec, guard, time.Hour, nil), callbackBody("txn-ref-2"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(rec.processed) != 0 {
		t.Fatalf("reconciler should not run on replay")
	}
}

func TestPaymentCallbackErrorReleasesGuard(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeInvalidSignature, "signature mismatch")}
	guard := &stubGuard{fresh: true}

	resp := postCallback(PaymentCallback(rec, guard, time.Hour, nil), callbackBody("txn-ref-3"))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(guard.deleted) != 1 {
		t.Fatalf("expected guard release, got %d deletes", len(guard.deleted))
	}
	if guard.deleted[0] != guard.keys[0] {
		t.Fatalf("released wrong key: %q", guard.deleted[0])
	}
}

func TestPaymentCallbackRejectsIncompletePayload(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	guard := &stubGuard{fresh: true}

	resp := postCallback(PaymentCallback(rec, guard, time.Hour, nil), `{"txn_ref": "x"}`)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(rec.processed) != 0 {
		t.Fatalf("reconciler should not run on invalid payload")
	}
}
