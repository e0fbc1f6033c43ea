package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusAwaitingPayment, OrderStatusAwaitingFulfillment, true},
		{OrderStatusAwaitingPayment, OrderStatusCancelled, true},
		{OrderStatusAwaitingPayment, OrderStatusCompleted, false},
		{OrderStatusAwaitingFulfillment, OrderStatusCompleted, true},
		{OrderStatusAwaitingFulfillment, OrderStatusCancelled, true},
		{OrderStatusAwaitingFulfillment, OrderStatusAwaitingPayment, false},
		{OrderStatusCancelled, OrderStatusAwaitingPayment, false},
		{OrderStatusCancelled, OrderStatusAwaitingFulfillment, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.allowed, got)
		}
	}

	if !OrderStatusCancelled.IsTerminal() || !OrderStatusCompleted.IsTerminal() {
		t.Fatalf("cancelled and completed must be absorbing")
	}
	if OrderStatusAwaitingPayment.IsTerminal() {
		t.Fatalf("awaiting_payment must not be terminal")
	}
}

func TestPaymentMethodInitialStatus(t *testing.T) {
	if got := PaymentMethodCOD.InitialOrderStatus(); got != OrderStatusAwaitingFulfillment {
		t.Fatalf("cod orders must start awaiting fulfillment, got %s", got)
	}
	if got := PaymentMethodBank.InitialOrderStatus(); got != OrderStatusAwaitingPayment {
		t.Fatalf("bank orders must start awaiting payment, got %s", got)
	}
}
