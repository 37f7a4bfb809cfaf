package notify

import "github.com/gen2brain/beeep"

// Alerter delivers an OS-level alert for a notification event.
type Alerter interface {
	Alert(title, message string) error
}

// DesktopAlerter shows alerts through the platform notification daemon.
type DesktopAlerter struct{}

var _ Alerter = (*DesktopAlerter)(nil)

// NewDesktopAlerter returns the platform-backed alerter.
func NewDesktopAlerter() *DesktopAlerter {
	return &DesktopAlerter{}
}

// Alert shows a single desktop notification.
func (a *DesktopAlerter) Alert(title, message string) error {
	return beeep.Notify(title, message, "")
}
