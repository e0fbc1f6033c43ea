package enums

import "fmt"

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodBank PaymentMethod = "bank"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodBank,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresGateway reports whether the method routes through the payment provider.
func (p PaymentMethod) RequiresGateway() bool {
	return p == PaymentMethodBank
}

// InitialOrderStatus returns the order status a freshly written order starts in.
func (p PaymentMethod) InitialOrderStatus() OrderStatus {
	if p.RequiresGateway() {
		return OrderStatusAwaitingPayment
	}
	return OrderStatusAwaitingFulfillment
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
