package enums

import "fmt"

// BountyStatus maps to the bounty_status_enum enum in Postgres. Transitions
// leave "open" exactly once; "fulfilled" and "cancelled" are terminal.
type BountyStatus string

const (
	BountyStatusOpen      BountyStatus = "open"
	BountyStatusFulfilled BountyStatus = "fulfilled"
	BountyStatusCancelled BountyStatus = "cancelled"
)

var validBountyStatuses = []BountyStatus{
	BountyStatusOpen,
	BountyStatusFulfilled,
	BountyStatusCancelled,
}

// IsValid reports whether the value matches the canonical bounty status enum.
func (s BountyStatus) IsValid() bool {
	for _, candidate := range validBountyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s BountyStatus) IsTerminal() bool {
	return s == BountyStatusFulfilled || s == BountyStatusCancelled
}

// ParseBountyStatus converts raw input into BountyStatus.
func ParseBountyStatus(value string) (BountyStatus, error) {
	for _, candidate := range validBountyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bounty status %q", value)
}
