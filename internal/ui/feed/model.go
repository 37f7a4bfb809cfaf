package feed

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/patient-portal/internal/keys"
	"github.com/nhle/patient-portal/internal/model"
	"github.com/nhle/patient-portal/internal/store"
)

// HistoryLoadedMsg is sent when the cached notification history has been
// read from the local store.
type HistoryLoadedMsg struct {
	Notifications []model.Notification
	Err           error
}

// MarkedReadMsg is sent after a history row was flagged as seen.
type MarkedReadMsg struct {
	ID  string
	Err error
}

// RefreshRequestMsg asks the shell to re-fetch the history from the
// gateway; the shell owns the API client and the session token.
type RefreshRequestMsg struct{}

// TestRequestMsg asks the shell to submit a synthetic test notification.
type TestRequestMsg struct{}

// loadTimeout bounds local store reads.
const loadTimeout = 5 * time.Second

// Model is the notification feed view. The live push log renders above the
// cached REST history; the two are deliberately separate sections, not a
// merged stream.
type Model struct {
	list      list.Model
	store     store.Store
	keys      *keys.KeyMap
	accountID int
	events    []model.NotificationEvent
	history   []model.Notification
	width     int
	height    int
}

// New creates the feed view.
func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{
		list:   l,
		store:  s,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init loads the cached history.
func (m Model) Init() tea.Cmd {
	return m.LoadHistory()
}

// SetAccount rebinds the view to a different account: the previous
// account's history rows are dropped immediately, before any store read
// for the new one completes.
func (m *Model) SetAccount(accountID int) {
	if m.accountID == accountID {
		return
	}
	m.accountID = accountID
	m.history = nil
}

// LoadHistory returns a command that reads the bound account's cached
// history from the local store.
func (m Model) LoadHistory() tea.Cmd {
	s := m.store
	accountID := m.accountID
	return func() tea.Msg {
		if accountID == 0 {
			return HistoryLoadedMsg{}
		}

		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		notifications, err := s.GetNotifications(ctx, accountID)
		return HistoryLoadedMsg{Notifications: notifications, Err: err}
	}
}

// SetEvents replaces the live event section with the aggregator's current
// log (newest first).
func (m *Model) SetEvents(events []model.NotificationEvent) tea.Cmd {
	m.events = events
	return m.rebuild()
}

// Update handles messages for the feed view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case HistoryLoadedMsg:
		if msg.Err == nil {
			m.history = msg.Notifications
		}
		return m, m.rebuild()

	case MarkedReadMsg:
		if msg.Err == nil {
			return m, m.LoadHistory()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			return m, func() tea.Msg { return RefreshRequestMsg{} }

		case key.Matches(msg, m.keys.TestPush):
			return m, func() tea.Msg { return TestRequestMsg{} }

		case key.Matches(msg, m.keys.MarkRead):
			if item, ok := m.list.SelectedItem().(HistoryItem); ok {
				return m, m.markRead(item.Notification.ID)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the feed.
func (m Model) View() string {
	return m.list.View()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

// markRead returns a command that flags a history row as seen.
func (m Model) markRead(id string) tea.Cmd {
	s := m.store
	accountID := m.accountID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		err := s.MarkNotificationRead(ctx, accountID, id)
		return MarkedReadMsg{ID: id, Err: err}
	}
}

// rebuild refreshes the list items: live events first, then history.
func (m *Model) rebuild() tea.Cmd {
	items := make([]list.Item, 0, len(m.events)+len(m.history))
	for _, e := range m.events {
		items = append(items, EventItem{Event: e})
	}
	for _, n := range m.history {
		items = append(items, HistoryItem{Notification: n})
	}
	return m.list.SetItems(items)
}
