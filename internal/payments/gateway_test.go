package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mekongcart/storefront-backend/pkg/config"
	"github.com/mekongcart/storefront-backend/pkg/db/models"
	"github.com/mekongcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
)

type stubDoer struct {
	calls     int
	responses []stubResponse
}

type stubResponse struct {
	status int
	body   any
	err    error
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	r := s.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	payload, _ := json.Marshal(r.body)
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(bytes.NewReader(payload)),
		Header:     http.Header{},
	}, nil
}

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		Endpoint:     "https://gateway.example.com/pay",
		MerchantCode: "MC1",
		Secret:       "topsecret",
		ReturnURL:    "https://shop.example.com/return",
		NotifyURL:    "https://shop.example.com/webhooks/payment",
		Timeout:      5 * time.Second,
		MaxRetries:   2,
	}
}

func testOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		PaymentMethod: enums.PaymentMethodBank,
		Status:        enums.OrderStatusAwaitingPayment,
		TotalAmount:   280000,
		PaymentRef:    uuid.NewString(),
	}
}

func TestInitiateReturnsPaymentURL(t *testing.T) {
	doer := &stubDoer{responses: []stubResponse{
		{status: http.StatusOK, body: initiationResponse{Code: "00", PaymentURL: "https://gateway.example.com/redirect/123"}},
	}}
	gw, err := NewGateway(testGatewayConfig(), doer, nil, nil)
	require.NoError(t, err)

	order := testOrder()
	result, err := gw.Initiate(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example.com/redirect/123", result.PaymentURL)
	assert.Equal(t, order.PaymentRef, result.TxnRef)
	assert.Equal(t, 1, doer.calls)
}

func TestInitiateSignsRequest(t *testing.T) {
	var captured initiationRequest
	doer := &stubDoer{responses: []stubResponse{
		{status: http.StatusOK, body: initiationResponse{Code: "00", PaymentURL: "https://x"}},
	}}
	gw, err := NewGateway(testGatewayConfig(), capturingDoer{doer, &captured}, nil, nil)
	require.NoError(t, err)

	order := testOrder()
	_, err = gw.Initiate(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, order.TotalAmount*100, captured.Amount, "amount is sent in the smallest currency unit")
	assert.Equal(t, order.PaymentRef, captured.TxnRef)

	params := map[string]string{
		"merchant_code": captured.MerchantCode,
		"txn_ref":       captured.TxnRef,
		"amount":        "28000000",
		"order_info":    captured.OrderInfo,
		"return_url":    captured.ReturnURL,
		"notify_url":    captured.NotifyURL,
	}
	assert.True(t, VerifySignature(params, "topsecret", captured.Signature))
}

type capturingDoer struct {
	next *stubDoer
	into *initiationRequest
}

func (c capturingDoer) Do(req *http.Request) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, c.into); err != nil {
		return nil, err
	}
	return c.next.Do(req)
}

func TestInitiateProviderRejection(t *testing.T) {
	doer := &stubDoer{responses: []stubResponse{
		{status: http.StatusOK, body: initiationResponse{Code: "51", Message: "insufficient funds"}},
	}}
	gw, err := NewGateway(testGatewayConfig(), doer, nil, nil)
	require.NoError(t, err)

	_, err = gw.Initiate(context.Background(), testOrder())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGatewayRejected, typed.Code())
	assert.Equal(t, 1, doer.calls, "provider rejection is not retried")
}

func TestInitiateRejectedOnClientError(t *testing.T) {
	doer := &stubDoer{responses: []stubResponse{
		{status: http.StatusBadRequest, body: initiationResponse{Code: "51", Message: "insufficient funds"}},
	}}
	gw, err := NewGateway(testGatewayConfig(), doer, nil, nil)
	require.NoError(t, err)

	_, err = gw.Initiate(context.Background(), testOrder())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGatewayRejected, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "51", details["code"])
	assert.Equal(t, "insufficient funds", details["message"])
	assert.Equal(t, 1, doer.calls, "client errors are not retried")
}

func TestInitiateRejectedOnClientErrorWithoutBody(t *testing.T) {
	doer := &stubDoer{responses: []stubResponse{
		{status: http.StatusForbidden, body: initiationResponse{}},
	}}
	gw, err := NewGateway(testGatewayConfig(), doer, nil, nil)
	require.NoError(t, err)

	_, err = gw.Initiate(context.Background(), testOrder())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGatewayRejected, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "403", details["code"])
}

func TestInitiateRetriesTransportFailures(t *testing.T) {
	doer := &stubDoer{responses: []stubResponse{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{status: http.StatusOK, body: initiationResponse{Code: "00", PaymentURL: "https://x"}},
	}}
	gw, err := NewGateway(testGatewayConfig(), doer, nil, nil)
	require.NoError(t, err)

	result, err := gw.Initiate(context.Background(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "https://x", result.PaymentURL)
	assert.Equal(t, 3, doer.calls)
}

func TestInitiateUnreachableAfterRetries(t *testing.T) {
	doer := &stubDoer{responses: []stubResponse{
		{err: errors.New("connection refused")},
	}}
	gw, err := NewGateway(testGatewayConfig(), doer, nil, nil)
	require.NoError(t, err)

	_, err = gw.Initiate(context.Background(), testOrder())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGatewayUnreachable, typed.Code())
	assert.Equal(t, 3, doer.calls, "initial attempt plus two retries")
}
