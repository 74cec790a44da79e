package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

// PaymentSession is one payment attempt handed to the provider. It is the
// single source of truth for whether the attempt already produced an order:
// Status is paid exactly when OrderID is set.
type PaymentSession struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Reference       string                `gorm:"column:reference;not null;uniqueIndex"`
	Amount          decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        enums.Currency        `gorm:"column:currency;not null"`
	Status          enums.SessionStatus   `gorm:"column:status;not null;index"`
	CheckoutURL     *string               `gorm:"column:checkout_url"`
	Customer        types.Customer        `gorm:"column:customer;type:jsonb;not null"`
	Items           types.CartItems       `gorm:"column:items;type:jsonb;not null"`
	Subtotal        decimal.Decimal       `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount        decimal.Decimal       `gorm:"column:discount;type:numeric(12,2);not null"`
	DiscountRate    decimal.Decimal       `gorm:"column:discount_rate;type:numeric(5,4);not null"`
	Tax             decimal.Decimal       `gorm:"column:tax;type:numeric(12,2);not null"`
	Shipping        decimal.Decimal       `gorm:"column:shipping;type:numeric(12,2);not null"`
	Total           decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null"`
	OrderID         *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	ProviderPayload types.RawJSON         `gorm:"column:provider_payload;type:jsonb"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Totals returns the frozen price breakdown.
func (p PaymentSession) Totals() types.Totals {
	return types.Totals{
		Subtotal:     p.Subtotal,
		Discount:     p.Discount,
		DiscountRate: p.DiscountRate,
		Tax:          p.Tax,
		Shipping:     p.Shipping,
		Total:        p.Total,
	}
}
