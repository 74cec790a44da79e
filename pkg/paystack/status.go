package paystack

import "strings"

// ProviderStatus is the closed set of charge outcomes the orchestrator acts on.
type ProviderStatus string

const (
	StatusSuccess   ProviderStatus = "success"
	StatusFailed    ProviderStatus = "failed"
	StatusCancelled ProviderStatus = "cancelled"
	StatusAbandoned ProviderStatus = "abandoned"
	StatusPending   ProviderStatus = "pending"
	StatusUnknown   ProviderStatus = "unknown"
)

// IsFailure reports whether the provider has declared the charge dead.
func (s ProviderStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusCancelled || s == StatusAbandoned
}

var statusAliases = map[string]ProviderStatus{
	"success":    StatusSuccess,
	"successful": StatusSuccess,
	"paid":       StatusSuccess,
	"completed":  StatusSuccess,
	"failed":     StatusFailed,
	"declined":   StatusFailed,
	"reversed":   StatusFailed,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
	"abandoned":  StatusAbandoned,
	"expired":    StatusAbandoned,
	"pending":    StatusPending,
	"ongoing":    StatusPending,
	"processing": StatusPending,
	"queued":     StatusPending,
}

// statusKeys are checked in order; the first that maps onto a known status wins.
var statusKeys = []string{"status", "transaction_status", "payment_status", "gateway_response"}

// MapStatus normalizes a decoded verify payload or webhook data object. The
// charge status is read from the nested data object first, then from the top
// level. The top-level boolean "status" of API envelopes is ignored.
func MapStatus(payload map[string]any) ProviderStatus {
	if payload == nil {
		return StatusUnknown
	}
	if data, ok := payload["data"].(map[string]any); ok {
		if status, found := lookupStatus(data); found {
			return status
		}
	}
	if status, found := lookupStatus(payload); found {
		return status
	}
	return StatusUnknown
}

// ParseStatus maps a single raw status string.
func ParseStatus(raw string) ProviderStatus {
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return StatusUnknown
}

func lookupStatus(fields map[string]any) (ProviderStatus, bool) {
	for _, key := range statusKeys {
		raw, ok := fields[key].(string)
		if !ok {
			continue
		}
		if status := ParseStatus(raw); status != StatusUnknown {
			return status, true
		}
	}
	return StatusUnknown, false
}
