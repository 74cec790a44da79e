package models

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Product{},
		&ProductReview{},
		&Order{},
		&OrderItem{},
		&PaymentSession{},
		&OutboxEvent{},
	}
}
