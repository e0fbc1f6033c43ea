package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout and payment outcomes.
type CheckoutMetrics struct {
	duration        *prometheus.HistogramVec
	ordersCreated   *prometheus.CounterVec
	checkoutFailed  *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"payment_method"})
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_created",
		Help: "Orders created, by payment method.",
	}, []string{"payment_method"})
	checkoutFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures",
		Help: "Failed checkout attempts, by error code.",
	}, []string{"code"})
	gatewayRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_requests",
		Help: "Payment gateway initiation attempts, by outcome.",
	}, []string{"outcome"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks",
		Help: "Payment callbacks processed, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, ordersCreated, checkoutFailed, gatewayRequests, callbacks)
	return &CheckoutMetrics{
		duration:        duration,
		ordersCreated:   ordersCreated,
		checkoutFailed:  checkoutFailed,
		gatewayRequests: gatewayRequests,
		callbacks:       callbacks,
	}
}

// ObserveCheckout records the duration of one checkout transaction.
func (m *CheckoutMetrics) ObserveCheckout(method string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncOrderCreated increments the created-order counter for a payment method.
func (m *CheckoutMetrics) IncOrderCreated(method string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncCheckoutFailure increments the failure counter for an error code.
func (m *CheckoutMetrics) IncCheckoutFailure(code string) {
	if m == nil || m.checkoutFailed == nil {
		return
	}
	m.checkoutFailed.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncGatewayRequest increments the gateway counter for an outcome
// (accepted, rejected, unreachable).
func (m *CheckoutMetrics) IncGatewayRequest(outcome string) {
	if m == nil || m.gatewayRequests == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCallback increments the callback counter for an outcome
// (paid, failed, replayed, invalid_signature, unknown_ref).
func (m *CheckoutMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
