package events

// Topic constants for notices emitted by the storefront.
const (
	TopicItemAdded       = "cart.item_added"
	TopicQuantityUpdated = "cart.quantity_updated"
	TopicItemRemoved     = "cart.item_removed"
	TopicCartCleared     = "cart.cleared"
	TopicOrderConfirmed  = "order.confirmed"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicItemAdded,
		TopicQuantityUpdated,
		TopicItemRemoved,
		TopicCartCleared,
		TopicOrderConfirmed,
	}
}
