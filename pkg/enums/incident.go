package enums

import "fmt"

// IncidentKind classifies operational incidents raised by the dispatch
// engine and cron sweeps.
type IncidentKind string

const (
	IncidentKindStuckOrder      IncidentKind = "stuck_order"
	IncidentKindLateOrder       IncidentKind = "late_order"
	IncidentKindDispatchFailure IncidentKind = "dispatch_failure"
)

var validIncidentKinds = []IncidentKind{
	IncidentKindStuckOrder,
	IncidentKindLateOrder,
	IncidentKindDispatchFailure,
}

// IsValid reports whether the value is a known IncidentKind.
func (i IncidentKind) IsValid() bool {
	for _, candidate := range validIncidentKinds {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIncidentKind converts raw input into an IncidentKind.
func ParseIncidentKind(value string) (IncidentKind, error) {
	for _, candidate := range validIncidentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid incident kind %q", value)
}

// IncidentStatus tracks whether an incident still needs attention.
type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "open"
	IncidentStatusResolved IncidentStatus = "resolved"
)

// IsValid reports whether the value is a known IncidentStatus.
func (i IncidentStatus) IsValid() bool {
	return i == IncidentStatusOpen || i == IncidentStatusResolved
}

// ParseIncidentStatus converts raw input into an IncidentStatus.
func ParseIncidentStatus(value string) (IncidentStatus, error) {
	status := IncidentStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid incident status %q", value)
	}
	return status, nil
}
