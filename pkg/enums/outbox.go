package enums

// OutboxEventType names the domain events the service emits.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order.created"
	EventOrderPaid      OutboxEventType = "order.paid"
	EventOrderCancelled OutboxEventType = "order.cancelled"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)
