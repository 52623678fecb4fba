package orders

const (
	TopicOrderEvents   = "pos.order.events"
	TopicNotifications = "pos.notifications"
)

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
