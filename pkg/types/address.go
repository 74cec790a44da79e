package types

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// ShippingAddress is the delivery address snapshot stored on sessions and orders.
type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zipCode,omitempty"`
}

// FullName joins the first and last name.
func (a ShippingAddress) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Value serializes the address to JSON.
func (a ShippingAddress) Value() (driver.Value, error) {
	return jsonValue(a)
}

// Scan decodes JSONB into the address struct.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}
