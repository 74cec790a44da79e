package enums

import "fmt"

// SessionStatus is the lifecycle of a payment session. Transitions only move
// forward: pending to paid, or pending to failed.
type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusPaid    SessionStatus = "paid"
	SessionStatusFailed  SessionStatus = "failed"
)

var validSessionStatuses = []SessionStatus{
	SessionStatusPending,
	SessionStatusPaid,
	SessionStatusFailed,
}

func (s SessionStatus) String() string {
	return string(s)
}

func (s SessionStatus) IsValid() bool {
	for _, candidate := range validSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the session can no longer change state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusPaid || s == SessionStatusFailed
}

func ParseSessionStatus(value string) (SessionStatus, error) {
	for _, candidate := range validSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session status %q", value)
}
