package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
)

// OrderPaidEvent is emitted when a paid payment session is turned into an order.
type OrderPaidEvent struct {
	OrderID          uuid.UUID       `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	SessionID        uuid.UUID       `json:"session_id"`
	PaymentReference string          `json:"payment_reference"`
	CustomerEmail    string          `json:"customer_email"`
	Currency         enums.Currency  `json:"currency"`
	Total            decimal.Decimal `json:"total"`
	ItemCount        int             `json:"item_count"`
	PaidAt           time.Time       `json:"paid_at"`
}

// OrderStatusChangedEvent records a fulfillment transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// OrderCancelledEvent is emitted when an order is cancelled and its stock restored.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	PreviousState enums.OrderStatus `json:"previous_status"`
	RestoredUnits int               `json:"restored_units"`
	Reason        string            `json:"reason,omitempty"`
	CancelledAt   time.Time         `json:"cancelled_at"`
}

// PaymentFailedEvent is emitted when a payment session becomes failed.
type PaymentFailedEvent struct {
	SessionID        uuid.UUID `json:"session_id"`
	PaymentReference string    `json:"payment_reference"`
	CustomerEmail    string    `json:"customer_email"`
	Reason           string    `json:"reason,omitempty"`
	FailedAt         time.Time `json:"failed_at"`
}

// ProductRestockedEvent is emitted when stock is added by an operator.
type ProductRestockedEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	Added     int       `json:"added"`
	Stock     int       `json:"stock"`
}
