package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/patient-portal/internal/model"
)

// Aggregator owns the ordered in-memory log of push-delivered events and
// coordinates OS alert delivery with the recorded permission. It is the
// only writer of the log; events are immutable once recorded.
type Aggregator struct {
	perms    PermissionStore
	prompter Prompter
	alerter  Alerter
	max      int

	mu     sync.Mutex
	events []model.NotificationEvent
}

// New creates an aggregator with an empty log. maxEvents caps the log to
// avoid unbounded growth; zero or negative means a default of 200.
func New(perms PermissionStore, prompter Prompter, alerter Alerter, maxEvents int) *Aggregator {
	if maxEvents <= 0 {
		maxEvents = 200
	}
	return &Aggregator{
		perms:    perms,
		prompter: prompter,
		alerter:  alerter,
		max:      maxEvents,
	}
}

// OnEvent records an event at the head of the log (newest first) and, when
// permission is granted and the event is not a connection-status event,
// requests one OS alert with the event's title and message. This is the
// single ingress for both server-pushed and synthetic events.
func (a *Aggregator) OnEvent(event model.NotificationEvent) {
	a.mu.Lock()
	a.events = append([]model.NotificationEvent{event}, a.events...)
	if len(a.events) > a.max {
		a.events = a.events[:a.max]
	}
	a.mu.Unlock()

	if event.IsConnectionStatus() {
		return
	}
	if a.perms.Permission() != model.PermissionGranted {
		return
	}
	if err := a.alerter.Alert(event.Title, event.Message); err != nil {
		log.Printf("notify: showing alert: %v", err)
	}
}

// Reset discards the in-memory log. The shell calls it on logout and on
// identity switch so one account's events are never shown to another.
// The recorded permission is untouched; it belongs to the machine, not
// the session.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = nil
}

// Events returns a snapshot of the log, newest first.
func (a *Aggregator) Events() []model.NotificationEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.NotificationEvent, len(a.events))
	copy(out, a.events)
	return out
}

// RequestPermissionIfDefault prompts for alert permission once at startup.
// A recorded grant or denial is final; the user is never re-prompted.
func (a *Aggregator) RequestPermissionIfDefault() {
	if a.perms.Permission() != model.PermissionDefault {
		return
	}

	granted, err := a.prompter.Ask()
	if err != nil {
		log.Printf("notify: permission prompt: %v", err)
		return
	}

	p := model.PermissionDenied
	if granted {
		p = model.PermissionGranted
	}
	if err := a.perms.SetPermission(p); err != nil {
		log.Printf("notify: recording permission: %v", err)
	}
}

// SendTest builds a synthetic event for the given identity and submits it
// through the same ingress path as server-pushed events, exercising the
// full delivery pipeline.
func (a *Aggregator) SendTest(identityID int) model.NotificationEvent {
	event := model.NotificationEvent{
		ID:        uuid.NewString(),
		Type:      model.EventTypeTest,
		Title:     "Test Notification",
		Message:   fmt.Sprintf("Delivery check for account %d", identityID),
		Timestamp: time.Now(),
	}
	a.OnEvent(event)
	return event
}
