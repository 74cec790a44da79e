package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

// Order is created exactly once per paid payment session. Line items,
// address and totals are snapshots and never re-derived from the catalog.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber      string                `gorm:"column:order_number;not null;uniqueIndex" json:"orderNumber"`
	Customer         types.Customer        `gorm:"column:customer;type:jsonb;not null" json:"customer"`
	ShippingAddress  types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null" json:"shippingAddress"`
	Items            []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Currency         enums.Currency        `gorm:"column:currency;not null" json:"currency"`
	Subtotal         decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	Discount         decimal.Decimal       `gorm:"column:discount;type:numeric(12,2);not null" json:"discount"`
	DiscountRate     decimal.Decimal       `gorm:"column:discount_rate;type:numeric(5,4);not null" json:"discountRate"`
	Tax              decimal.Decimal       `gorm:"column:tax;type:numeric(12,2);not null" json:"tax"`
	Shipping         decimal.Decimal       `gorm:"column:shipping;type:numeric(12,2);not null" json:"shipping"`
	Total            decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	Status           enums.OrderStatus     `gorm:"column:status;not null" json:"status"`
	PaymentStatus    enums.PaymentStatus   `gorm:"column:payment_status;not null" json:"paymentStatus"`
	PaymentReference *string               `gorm:"column:payment_reference;uniqueIndex" json:"paymentReference,omitempty"`
	CancelledAt      *time.Time            `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	DeliveredAt      *time.Time            `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// OrderItem is the denormalized line snapshot. ProductID is not a foreign key
// so the order survives product deletion.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index" json:"orderId"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	Name      string          `gorm:"column:name;not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unitPrice"`
	Quantity  int             `gorm:"column:quantity;not null" json:"quantity"`
	SizeLabel string          `gorm:"column:size_label;not null;default:''" json:"sizeLabel,omitempty"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null" json:"lineTotal"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
