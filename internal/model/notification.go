package model

import "time"

// Well-known notification event types delivered over the push channel.
const (
	EventTypeTest        = "test"
	EventTypeAppointment = "appointment"
	EventTypeBilling     = "billing"
	EventTypeConnection  = "connection"
)

// NotificationEvent is a single message delivered over the push channel.
// Events are immutable once recorded; the displayed log orders them by
// arrival, newest first.
type NotificationEvent struct {
	// ID is assigned locally when the frame carries none.
	ID string `json:"id"`

	// Type identifies the event kind (see EventType constants).
	Type string `json:"type"`

	// Title is the short headline shown in the feed and OS alerts.
	Title string `json:"title"`

	// Message is the notification body text.
	Message string `json:"message"`

	// Timestamp is when the event arrived at the client.
	Timestamp time.Time `json:"timestamp"`

	// Payload holds any extra fields the backend attached to the frame.
	Payload map[string]any `json:"payload,omitempty"`
}

// IsConnectionStatus reports whether the event only describes push channel
// state. Status events appear in the feed but never trigger OS alerts.
func (e NotificationEvent) IsConnectionStatus() bool {
	return e.Type == EventTypeConnection
}

// Permission is the recorded OS alert permission. It is owned by the
// platform; the client only reads and requests it, never forces it.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Notification is a row of the REST-fetched notification history. The
// history is cached locally with a read flag and kept as a separate view
// from the live push log.
type Notification struct {
	// ID is the backend identifier for this notification.
	ID string `json:"id"`

	// Title is the short headline.
	Title string `json:"title"`

	// Message is the notification body text.
	Message string `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when the backend generated this notification.
	CreatedAt time.Time `json:"created_at"`
}
