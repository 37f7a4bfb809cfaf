package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/patient-portal/internal/access"
	"github.com/nhle/patient-portal/internal/api"
	"github.com/nhle/patient-portal/internal/keys"
	"github.com/nhle/patient-portal/internal/model"
	"github.com/nhle/patient-portal/internal/notify"
	"github.com/nhle/patient-portal/internal/push"
	"github.com/nhle/patient-portal/internal/session"
	"github.com/nhle/patient-portal/internal/store"
	"github.com/nhle/patient-portal/internal/ui"
	"github.com/nhle/patient-portal/internal/ui/feed"
	"github.com/nhle/patient-portal/internal/ui/login"
)

// requestTimeout bounds the one-shot gateway requests issued from the UI.
const requestTimeout = 15 * time.Second

// sessionChangedMsg carries a session state transition into the event loop.
type sessionChangedMsg struct {
	state model.SessionState
}

// loginResultMsg carries the outcome of a login attempt.
type loginResultMsg struct {
	err error
}

// registerResultMsg carries the outcome of a registration attempt.
type registerResultMsg struct {
	err error
}

// restoreDoneMsg carries the outcome of the startup session restore.
type restoreDoneMsg struct {
	err error
}

// pushEventMsg carries one push-delivered notification event.
type pushEventMsg struct {
	event model.NotificationEvent
}

// pushStatusMsg carries a push connection state transition.
type pushStatusMsg struct {
	status push.Status
}

// historyRefreshedMsg is sent after the gateway history was fetched and
// cached locally.
type historyRefreshedMsg struct {
	err error
}

// unreadCountMsg carries the number of unread history rows to the header.
type unreadCountMsg struct {
	count int
}

// Model is the root Bubble Tea model. It owns view routing through the
// access gate and wires the session controller, push channel and
// notification aggregator together: session transitions drive the push
// lifecycle, push events feed the aggregator, and the views only observe.
type Model struct {
	route    access.Route
	layout   ui.Layout
	keys     *keys.KeyMap
	gateway  *api.Client
	sessions *session.Controller
	channel  *push.Channel
	notifier *notify.Aggregator
	store    store.Store

	sessionCh <-chan model.SessionState

	loginView login.Model
	feedView  feed.Model

	pushStatus  push.Status
	identityID  int
	unreadCount int
	ready       bool
}

// New creates the root application model.
func New(
	gateway *api.Client,
	sessions *session.Controller,
	channel *push.Channel,
	notifier *notify.Aggregator,
	s store.Store,
) Model {
	k := keys.DefaultKeyMap()

	return Model{
		route:     access.RouteLogin,
		keys:      k,
		gateway:   gateway,
		sessions:  sessions,
		channel:   channel,
		notifier:  notifier,
		store:     s,
		sessionCh: sessions.Subscribe(),
		loginView: login.New(80, 24),
		feedView:  feed.New(s, k, 80, 24),
	}
}

// Init restores any persisted session and starts the subscription loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loginView.Init(),
		m.feedView.Init(),
		m.restoreSession(),
		m.waitForSession(),
		m.waitForPushEvent(),
		m.waitForPushStatus(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.loginView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.feedView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		return m.updateActiveView(msg)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Logout):
			if m.sessions.State().IsAuthenticated() {
				return m, m.logout()
			}
			return m, nil

		case key.Matches(msg, m.keys.SwitchForm):
			if m.route == access.RouteLogin || m.route == access.RouteRegister {
				return m, m.loginView.SwitchMode()
			}
		}
		return m.updateActiveView(msg)

	case sessionChangedMsg:
		cmd := m.applySessionState(msg.state)
		return m, tea.Batch(cmd, m.waitForSession())

	case restoreDoneMsg:
		// A transport failure during restore leaves the credential in
		// place; surface a retry-eligible message on the login form.
		if msg.err != nil {
			return m, m.loginView.SetError(
				"Could not restore your session: " + msg.err.Error())
		}
		return m, nil

	case login.LoginSubmitMsg:
		return m, m.login(msg.Username, msg.Password)

	case login.RegisterSubmitMsg:
		return m, m.register(msg)

	case loginResultMsg:
		if msg.err != nil {
			state := m.sessions.State()
			reason := state.Reason
			if reason == "" {
				reason = msg.err.Error()
			}
			return m, m.loginView.SetError(reason)
		}
		// The Authenticated transition arrives via sessionChangedMsg.
		return m, nil

	case registerResultMsg:
		if msg.err != nil {
			return m, m.loginView.SetError(api.Detail(msg.err))
		}
		return m, m.loginView.SetInfo("Account created. Sign in to continue.")

	case pushEventMsg:
		// Each event is handled to completion before the next one is
		// admitted, so the log never shows a partial update.
		m.notifier.OnEvent(msg.event)
		cmd := m.feedView.SetEvents(m.notifier.Events())
		return m, tea.Batch(cmd, m.waitForPushEvent())

	case pushStatusMsg:
		m.pushStatus = msg.status
		return m, m.waitForPushStatus()

	case feed.RefreshRequestMsg:
		return m, m.refreshHistory()

	case feed.TestRequestMsg:
		if state := m.sessions.State(); state.IsAuthenticated() {
			m.notifier.SendTest(state.Identity.ID)
			return m, m.feedView.SetEvents(m.notifier.Events())
		}
		return m, nil

	case historyRefreshedMsg:
		if msg.err != nil {
			if api.IsUnauthorized(msg.err) {
				// Forced logout: the backend rejected the credential.
				return m, m.credentialRejected()
			}
			return m, nil
		}
		return m, tea.Batch(m.feedView.LoadHistory(), m.fetchUnreadCount())

	case feed.HistoryLoadedMsg:
		var cmd tea.Cmd
		m.feedView, cmd = m.feedView.Update(msg)
		return m, tea.Batch(cmd, m.fetchUnreadCount())

	case unreadCountMsg:
		m.unreadCount = msg.count
		return m, nil
	}

	return m.updateActiveView(msg)
}

// View renders the active view inside the standard frame.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var content string
	switch m.route {
	case access.RouteFeed:
		content = m.feedView.View()
	default:
		content = m.loginView.View()
	}

	header := m.layout.RenderHeader("HealthCare Portal", m.headerStatus())
	statusBar := m.layout.RenderStatusBar(m.statusHints())
	return m.layout.RenderWithFrame(header, content, statusBar)
}

// navigate routes through the access gate. The gate is consulted on every
// attempt because the session can be torn down while a view is mounted.
func (m *Model) navigate(target access.Route) {
	decision := access.Decide(m.sessions.State(), target)
	if decision.Allow {
		m.route = target
		return
	}
	m.route = decision.RedirectTo
}

// applySessionState reacts to a session transition: an authenticated
// session opens the push channel for its identity and lands on the feed;
// any other state tears the channel down in the same dispatch turn and
// returns to the login view. An identity change, in either direction,
// also empties the aggregator log and the feed so one account's
// notifications never render under another's session.
func (m *Model) applySessionState(state model.SessionState) tea.Cmd {
	if state.IsAuthenticated() {
		var clearCmd tea.Cmd
		if id := state.Identity.ID; id != m.identityID {
			m.notifier.Reset()
			m.identityID = id
			m.feedView.SetAccount(id)
			clearCmd = m.feedView.SetEvents(nil)
		}
		m.channel.Open(state.Identity.ID)
		m.navigate(access.RouteFeed)
		return tea.Batch(clearCmd, m.refreshHistory())
	}

	// There is no valid state where the session is logged out and the
	// push channel still open, or the previous account's events still
	// held in memory.
	m.channel.Close()
	var clearCmd tea.Cmd
	if m.identityID != 0 {
		m.notifier.Reset()
		m.identityID = 0
		m.feedView.SetAccount(0)
		m.unreadCount = 0
		clearCmd = m.feedView.SetEvents(nil)
	}
	m.navigate(access.RouteLogin)
	return clearCmd
}

func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.route {
	case access.RouteFeed:
		m.feedView, cmd = m.feedView.Update(msg)
	default:
		m.loginView, cmd = m.loginView.Update(msg)
	}
	return m, cmd
}

func (m Model) headerStatus() string {
	state := m.sessions.State()
	if !state.IsAuthenticated() {
		return state.Phase.String()
	}

	status := fmt.Sprintf("%s · push %s", state.Identity.Username, m.pushStatus.State)
	if m.unreadCount > 0 {
		status = fmt.Sprintf("%s · %d unread", status, m.unreadCount)
	}
	return status
}

func (m Model) statusHints() string {
	if m.route == access.RouteFeed {
		return "r: refresh · m: mark read · t: test notification · ctrl+l: log out · ctrl+c: quit"
	}
	return "ctrl+t: login/register · ctrl+c: quit"
}

// restoreSession resolves a persisted credential at startup.
func (m Model) restoreSession() tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return restoreDoneMsg{err: sessions.Restore(ctx)}
	}
}

func (m Model) login(username, password string) tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := sessions.Login(ctx, username, password)
		return loginResultMsg{err: err}
	}
}

func (m Model) register(msg login.RegisterSubmitMsg) tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err := sessions.Register(ctx, msg.Username, msg.Email, msg.Password, msg.Role)
		return registerResultMsg{err: err}
	}
}

// logout tears the session down; the push channel follows via the session
// subscription in the same dispatch turn.
func (m Model) logout() tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		sessions.Logout()
		return nil
	}
}

// credentialRejected raises the global forced-logout signal.
func (m Model) credentialRejected() tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		sessions.CredentialRejected()
		return nil
	}
}

// refreshHistory fetches the gateway's notification listing and caches it
// locally, preserving local read flags.
func (m Model) refreshHistory() tea.Cmd {
	gateway := m.gateway
	sessions := m.sessions
	s := m.store
	return func() tea.Msg {
		state := sessions.State()
		if !state.IsAuthenticated() {
			return historyRefreshedMsg{}
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		notifications, err := gateway.Notifications(ctx, state.Token)
		if err != nil {
			return historyRefreshedMsg{err: err}
		}
		if err := s.UpsertNotifications(ctx, state.Identity.ID, notifications); err != nil {
			return historyRefreshedMsg{err: err}
		}
		return historyRefreshedMsg{}
	}
}

// fetchUnreadCount reads the signed-in account's unread total for the
// header.
func (m Model) fetchUnreadCount() tea.Cmd {
	s := m.store
	sessions := m.sessions
	return func() tea.Msg {
		state := sessions.State()
		if !state.IsAuthenticated() {
			return unreadCountMsg{count: 0}
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		count, err := s.UnreadCount(ctx, state.Identity.ID)
		if err != nil {
			return unreadCountMsg{count: 0}
		}
		return unreadCountMsg{count: count}
	}
}

// waitForSession relays the next session transition into the event loop.
func (m Model) waitForSession() tea.Cmd {
	ch := m.sessionCh
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return sessionChangedMsg{state: state}
	}
}

// waitForPushEvent relays the next push-delivered event.
func (m Model) waitForPushEvent() tea.Cmd {
	ch := m.channel.Events()
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return pushEventMsg{event: event}
	}
}

// waitForPushStatus relays the next push connection transition.
func (m Model) waitForPushStatus() tea.Cmd {
	ch := m.channel.StatusChanges()
	return func() tea.Msg {
		status, ok := <-ch
		if !ok {
			return nil
		}
		return pushStatusMsg{status: status}
	}
}
