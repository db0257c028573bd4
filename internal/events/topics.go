package events

// Topic constants for domain events emitted by the back office.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderUpdated       = "order.updated"
	TopicOrderDeleted       = "order.deleted"
	TopicPaymentRecorded    = "payment.recorded"
	TopicPurchaseRecorded   = "purchase.recorded"
	TopicSettingsUpdated    = "settings.updated"
	TopicMenuItemChanged    = "menu.item_changed"
	TopicVATReturnGenerated = "vat_return.generated"
	TopicVATReturnSubmitted = "vat_return.submitted"
)

// FinancialTopics lists the topics that change reported figures.
func FinancialTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderUpdated,
		TopicOrderDeleted,
		TopicPaymentRecorded,
		TopicPurchaseRecorded,
		TopicSettingsUpdated,
	}
}

// IsFinancial reports whether topic changes reported figures.
func IsFinancial(topic string) bool {
	for _, t := range FinancialTopics() {
		if t == topic {
			return true
		}
	}
	return false
}
