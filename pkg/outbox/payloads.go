package outbox

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine is one purchased line as carried in order events.
type OrderLine struct {
	SkuID     uuid.UUID `json:"skuId"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unitPrice"`
}

// OrderCreatedData is the data section of an order.created event.
type OrderCreatedData struct {
	OrderID       uuid.UUID   `json:"orderId"`
	UserID        uuid.UUID   `json:"userId"`
	PaymentMethod string      `json:"paymentMethod"`
	Status        string      `json:"status"`
	TotalAmount   int64       `json:"totalAmount"`
	Lines         []OrderLine `json:"lines"`
}

// OrderPaidData is the data section of an order.paid event.
type OrderPaidData struct {
	OrderID       uuid.UUID `json:"orderId"`
	PaymentRef    string    `json:"paymentRef"`
	TransactionNo string    `json:"transactionNo,omitempty"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paidAt"`
}

// OrderCancelledData is the data section of an order.cancelled event.
type OrderCancelledData struct {
	OrderID uuid.UUID `json:"orderId"`
	Reason  string    `json:"reason,omitempty"`
}
