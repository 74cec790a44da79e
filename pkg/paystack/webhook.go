package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paystack-signature"

const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// Sign computes the signature Paystack attaches to a webhook body.
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the header against the exact bytes received. It
// never decodes the body; re-encoded JSON would not match.
func VerifySignature(rawBody []byte, signature, secret string) bool {
	if len(rawBody) == 0 || secret == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(provided, mac.Sum(nil))
}

// Event is a decoded webhook notification.
type Event struct {
	Event     string
	Reference string
	Status    ProviderStatus
	Data      map[string]any
}

// ParseEvent decodes the event name and charge reference from a webhook body.
func ParseEvent(rawBody []byte) (Event, error) {
	var envelope struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(envelope.Event) == "" {
		return Event{}, errors.New("webhook event name is missing")
	}

	evt := Event{
		Event:  strings.TrimSpace(envelope.Event),
		Data:   envelope.Data,
		Status: StatusUnknown,
	}
	if envelope.Data != nil {
		if ref, ok := envelope.Data["reference"].(string); ok {
			evt.Reference = strings.TrimSpace(ref)
		}
		if status, found := lookupStatus(envelope.Data); found {
			evt.Status = status
		}
	}
	return evt, nil
}
