package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is a single line of the cart snapshot frozen at checkout.
type CartItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	SizeLabel string          `json:"sizeLabel,omitempty"`
}

// Validate checks a single line of a submitted cart.
func (c CartItem) Validate() error {
	if c.ProductID == uuid.Nil {
		return errors.New("product id is required")
	}
	if c.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if c.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

// LineTotal returns price multiplied by quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// CartItems is the JSONB list of cart lines.
type CartItems []CartItem

// Value serializes the items to JSON.
func (c CartItems) Value() (driver.Value, error) {
	if c == nil {
		return jsonValue([]CartItem{})
	}
	return jsonValue([]CartItem(c))
}

// Scan decodes JSONB into the item list.
func (c *CartItems) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded []CartItem
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*c = decoded
	return nil
}

// Subtotal sums the line totals.
func (c CartItems) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Totals is the computed price breakdown submitted at checkout.
type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountRate decimal.Decimal `json:"discountRate"`
	Tax          decimal.Decimal `json:"tax"`
	Shipping     decimal.Decimal `json:"shipping"`
	Total        decimal.Decimal `json:"total"`
}
