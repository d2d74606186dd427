package enums

import "fmt"

// PushEventType labels messages on the realtime push channel. The
// websocket gateway fans these out to connected clients.
type PushEventType string

const (
	PushOrderUpdate          PushEventType = "order_update"
	PushRiderUpdate          PushEventType = "rider_update"
	PushNotification         PushEventType = "notification"
	PushSystemAlert          PushEventType = "system_alert"
	PushRiderLocationUpdated PushEventType = "rider_location_updated"
	PushOrderStatusUpdated   PushEventType = "order_status_updated"
	PushRiderScoreUpdated    PushEventType = "rider_score_updated"
)

var validPushEventTypes = []PushEventType{
	PushOrderUpdate,
	PushRiderUpdate,
	PushNotification,
	PushSystemAlert,
	PushRiderLocationUpdated,
	PushOrderStatusUpdated,
	PushRiderScoreUpdated,
}

// String implements fmt.Stringer.
func (p PushEventType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PushEventType.
func (p PushEventType) IsValid() bool {
	for _, candidate := range validPushEventTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePushEventType converts raw input into a PushEventType.
func ParsePushEventType(value string) (PushEventType, error) {
	for _, candidate := range validPushEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid push event type %q", value)
}
