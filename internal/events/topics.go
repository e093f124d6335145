package events

// Topic constants for domain events emitted by the shop.
const (
	TopicOrderCreated  = "order.created"
	TopicOrderPaid     = "order.paid"
	TopicOrderCanceled = "order.canceled"
	TopicPaymentFailed = "payment.failed"
	TopicStockLow      = "stock.low"
)

// DefaultTopics returns the canonical list of notifiable topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderCanceled,
		TopicPaymentFailed,
		TopicStockLow,
	}
}
