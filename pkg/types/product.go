package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ProductSize is a priced size variant of a product.
type ProductSize struct {
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// ProductSizes is the JSONB list of size variants.
type ProductSizes []ProductSize

func (p ProductSizes) Value() (driver.Value, error) {
	if p == nil {
		return jsonValue([]ProductSize{})
	}
	return jsonValue([]ProductSize(p))
}

func (p *ProductSizes) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded []ProductSize
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}

// Find returns the size with the given label.
func (p ProductSizes) Find(label string) (ProductSize, bool) {
	for _, size := range p {
		if size.Label == label {
			return size, true
		}
	}
	return ProductSize{}, false
}

// StringList is a JSONB array of strings (ingredients, benefits).
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return jsonValue([]string{})
	}
	return jsonValue([]string(s))
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded []string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*s = decoded
	return nil
}
