package messaging

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status_changed"
	TopicLowStock           = "inventory.low_stock"
)

// NotificationTopics are consumed by the notification worker.
var NotificationTopics = []string{TopicOrderPlaced, TopicOrderStatusChanged, TopicLowStock}
