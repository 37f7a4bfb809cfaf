package feed

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/patient-portal/internal/model"
	"github.com/nhle/patient-portal/internal/theme"
)

// EventItem wraps a live push event for the bubbles list.
type EventItem struct {
	Event model.NotificationEvent
}

// FilterValue returns the string used for fuzzy filtering.
func (i EventItem) FilterValue() string { return i.Event.Title }

// HistoryItem wraps a cached history row for the bubbles list.
type HistoryItem struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i HistoryItem) FilterValue() string { return i.Notification.Title }

// ItemDelegate renders feed entries: live events with their type badge,
// history rows with an unread marker.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update is a no-op; selection is handled by the feed model.
func (d ItemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

// Render draws a single feed entry.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	var line string

	switch it := item.(type) {
	case EventItem:
		line = strings.Join([]string{
			theme.EventTypeStyle(it.Event.Type).Render(it.Event.Type),
			it.Event.Title,
			it.Event.Message,
			relativeTime(it.Event.Timestamp),
		}, " ")
	case HistoryItem:
		marker := "  "
		if !it.Notification.Read {
			marker = theme.UnreadStyle.Render("● ")
		}
		line = fmt.Sprintf("%s%s · %s (%s)",
			marker,
			it.Notification.Title,
			it.Notification.Message,
			relativeTime(it.Notification.CreatedAt),
		)
	default:
		return
	}

	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}

// relativeTime formats a timestamp as a short "5m ago" style string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
