package enums

import "fmt"

// OrderStatus tracks the lifecycle of a storefront order.
type OrderStatus string

const (
	// OrderStatusAwaitingPayment is the initial state of gateway-routed orders.
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	// OrderStatusAwaitingFulfillment is the initial state of cash-on-delivery
	// orders and the state a paid order advances into.
	OrderStatusAwaitingFulfillment OrderStatus = "awaiting_fulfillment"
	OrderStatusCompleted           OrderStatus = "completed"
	OrderStatusCancelled           OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusAwaitingPayment,
	OrderStatusAwaitingFulfillment,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusAwaitingPayment:     {OrderStatusAwaitingFulfillment, OrderStatusCancelled},
	OrderStatusAwaitingFulfillment: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:           {},
	OrderStatusCancelled:           {},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderStatusTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether a status change is permitted.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, candidate := range orderStatusTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
