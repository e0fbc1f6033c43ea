package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mekongcart/storefront-backend/pkg/config"
	"github.com/mekongcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
	"github.com/mekongcart/storefront-backend/pkg/logger"
	"github.com/mekongcart/storefront-backend/pkg/metrics"
)

const gatewaySuccessCode = "00"

// InitiationResult is the gateway's answer to a payment initiation.
type InitiationResult struct {
	PaymentURL string
	TxnRef     string
}

// Gateway initiates payment collection for a committed order.
type Gateway interface {
	Initiate(ctx context.Context, order *models.Order) (*InitiationResult, error)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type gateway struct {
	cfg     config.GatewayConfig
	client  httpDoer
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics
}

// NewGateway builds the payment gateway adapter. The credentials and
// endpoints come from the injected config only.
func NewGateway(cfg config.GatewayConfig, client httpDoer, logg *logger.Logger, m *metrics.CheckoutMetrics) (Gateway, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("gateway endpoint required")
	}
	if cfg.MerchantCode == "" {
		return nil, fmt.Errorf("gateway merchant code required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("gateway secret required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &gateway{cfg: cfg, client: client, logg: logg, metrics: m}, nil
}

type initiationRequest struct {
	MerchantCode string `json:"merchant_code"`
	TxnRef       string `json:"txn_ref"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"order_info"`
	ReturnURL    string `json:"return_url"`
	NotifyURL    string `json:"notify_url"`
	Signature    string `json:"signature"`
}

type initiationResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	PaymentURL string `json:"payment_url"`
}

// Initiate submits a signed payment request for the order. The caller must
// only invoke this after the checkout transaction has committed; failure here
// never unwinds the order. Transport failures are retried with fibonacci
// backoff up to the configured cap, then surface as GATEWAY_UNREACHABLE.
func (g *gateway) Initiate(ctx context.Context, order *models.Order) (*InitiationResult, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order required")
	}
	if order.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order has no payment ref")
	}

	// Amount goes over in the smallest currency unit.
	amount := order.TotalAmount * 100
	params := map[string]string{
		"merchant_code": g.cfg.MerchantCode,
		"txn_ref":       order.PaymentRef,
		"amount":        strconv.FormatInt(amount, 10),
		"order_info":    "order " + order.ID.String(),
		"return_url":    g.cfg.ReturnURL,
		"notify_url":    g.cfg.NotifyURL,
	}
	body, err := json.Marshal(initiationRequest{
		MerchantCode: params["merchant_code"],
		TxnRef:       params["txn_ref"],
		Amount:       amount,
		OrderInfo:    params["order_info"],
		ReturnURL:    params["return_url"],
		NotifyURL:    params["notify_url"],
		Signature:    Sign(params, g.cfg.Secret),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding gateway request")
	}

	var parsed initiationResponse
	backoff := retry.WithMaxRetries(uint64(g.cfg.MaxRetries), retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("gateway returned status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			// A 4xx is the provider refusing the request, not an outage.
			var rejection initiationResponse
			if decodeErr := json.NewDecoder(resp.Body).Decode(&rejection); decodeErr != nil || rejection.Code == "" {
				rejection.Code = strconv.Itoa(resp.StatusCode)
				rejection.Message = http.StatusText(resp.StatusCode)
			}
			return pkgerrors.New(pkgerrors.CodeGatewayRejected, "payment gateway rejected the request").
				WithDetails(map[string]any{"code": rejection.Code, "message": rejection.Message})
		}
		return json.NewDecoder(resp.Body).Decode(&parsed)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeGatewayRejected {
			g.metrics.IncGatewayRequest("rejected")
			return nil, err
		}
		g.metrics.IncGatewayRequest("unreachable")
		if g.logg != nil {
			g.logg.Warn(g.logg.WithOrderID(ctx, order.ID.String()), "payment gateway unreachable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnreachable, err, "payment gateway unreachable")
	}

	if parsed.Code != gatewaySuccessCode {
		g.metrics.IncGatewayRequest("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeGatewayRejected, "payment gateway rejected the request").
			WithDetails(map[string]any{"code": parsed.Code, "message": parsed.Message})
	}
	if parsed.PaymentURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway response missing payment url")
	}

	g.metrics.IncGatewayRequest("accepted")
	return &InitiationResult{PaymentURL: parsed.PaymentURL, TxnRef: order.PaymentRef}, nil
}
