package types

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// Customer is the contact snapshot captured at checkout.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Normalize trims whitespace and lowercases the email.
func (c Customer) Normalize() Customer {
	return Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.ToLower(strings.TrimSpace(c.Email)),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// Value serializes the customer to JSON.
func (c Customer) Value() (driver.Value, error) {
	return jsonValue(c)
}

// Scan decodes JSONB into the customer struct.
func (c *Customer) Scan(value interface{}) error {
	if value == nil {
		*c = Customer{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, c)
}
