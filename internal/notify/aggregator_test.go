package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/patient-portal/internal/model"
)

type memPermissions struct {
	mu sync.Mutex
	p  model.Permission
}

func (m *memPermissions) Permission() model.Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.p == "" {
		return model.PermissionDefault
	}
	return m.p
}

func (m *memPermissions) SetPermission(p model.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = p
	return nil
}

type scriptedPrompter struct {
	answer bool
	asks   int
}

func (s *scriptedPrompter) Ask() (bool, error) {
	s.asks++
	return s.answer, nil
}

type recordingAlerter struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingAlerter) Alert(title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingAlerter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.titles)
}

func event(id, title string) model.NotificationEvent {
	return model.NotificationEvent{
		ID:        id,
		Type:      model.EventTypeAppointment,
		Title:     title,
		Message:   "body",
		Timestamp: time.Now(),
	}
}

func TestEventsAreRecordedNewestFirst(t *testing.T) {
	t.Parallel()

	a := New(&memPermissions{}, &scriptedPrompter{}, &recordingAlerter{}, 0)

	a.OnEvent(event("n1", "first"))
	a.OnEvent(event("n2", "second"))
	a.OnEvent(event("n3", "third"))

	got := a.Events()
	require.Len(t, got, 3)
	assert.Equal(t, "third", got[0].Title)
	assert.Equal(t, "first", got[2].Title)
}

func TestLogIsCapped(t *testing.T) {
	t.Parallel()

	a := New(&memPermissions{}, &scriptedPrompter{}, &recordingAlerter{}, 3)

	for i := 0; i < 5; i++ {
		a.OnEvent(event(fmt.Sprintf("n%d", i), fmt.Sprintf("title %d", i)))
	}

	got := a.Events()
	require.Len(t, got, 3)
	// Oldest entries fall off the tail.
	assert.Equal(t, "title 4", got[0].Title)
	assert.Equal(t, "title 2", got[2].Title)
}

func TestResetDiscardsLogButNotPermission(t *testing.T) {
	t.Parallel()

	perms := &memPermissions{}
	require.NoError(t, perms.SetPermission(model.PermissionGranted))

	a := New(perms, &scriptedPrompter{}, &recordingAlerter{}, 0)
	a.OnEvent(event("n1", "for the first account"))
	a.OnEvent(event("n2", "also for the first account"))
	require.Len(t, a.Events(), 2)

	// Identity switch: the next account starts with an empty log.
	a.Reset()
	assert.Empty(t, a.Events())
	assert.Equal(t, model.PermissionGranted, perms.Permission())

	a.OnEvent(event("n3", "for the second account"))
	got := a.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "for the second account", got[0].Title)
}

func TestAlertOnlyWhenGranted(t *testing.T) {
	t.Parallel()

	alerter := &recordingAlerter{}
	perms := &memPermissions{}
	a := New(perms, &scriptedPrompter{}, alerter, 0)

	a.OnEvent(event("n1", "silent"))
	assert.Equal(t, 0, alerter.count())

	require.NoError(t, perms.SetPermission(model.PermissionDenied))
	a.OnEvent(event("n2", "still silent"))
	assert.Equal(t, 0, alerter.count())

	require.NoError(t, perms.SetPermission(model.PermissionGranted))
	a.OnEvent(event("n3", "audible"))
	assert.Equal(t, 1, alerter.count())

	// Suppressed events are still recorded.
	assert.Len(t, a.Events(), 3)
}

func TestConnectionStatusEventsNeverAlert(t *testing.T) {
	t.Parallel()

	alerter := &recordingAlerter{}
	perms := &memPermissions{}
	require.NoError(t, perms.SetPermission(model.PermissionGranted))

	a := New(perms, &scriptedPrompter{}, alerter, 0)
	a.OnEvent(model.NotificationEvent{
		ID:      "c1",
		Type:    model.EventTypeConnection,
		Title:   "Reconnected",
		Message: "Push connection restored",
	})

	assert.Equal(t, 0, alerter.count())
	assert.Len(t, a.Events(), 1)
}

func TestPermissionPromptedAtMostOnce(t *testing.T) {
	t.Parallel()

	prompter := &scriptedPrompter{answer: true}
	perms := &memPermissions{}
	a := New(perms, prompter, &recordingAlerter{}, 0)

	a.RequestPermissionIfDefault()
	a.RequestPermissionIfDefault()

	assert.Equal(t, 1, prompter.asks)
	assert.Equal(t, model.PermissionGranted, perms.Permission())
}

func TestDeniedAnswerIsFinal(t *testing.T) {
	t.Parallel()

	prompter := &scriptedPrompter{answer: false}
	perms := &memPermissions{}
	a := New(perms, prompter, &recordingAlerter{}, 0)

	a.RequestPermissionIfDefault()
	assert.Equal(t, model.PermissionDenied, perms.Permission())

	// Flipping the scripted answer changes nothing; the recorded denial
	// short-circuits the prompt.
	prompter.answer = true
	a.RequestPermissionIfDefault()
	assert.Equal(t, 1, prompter.asks)
	assert.Equal(t, model.PermissionDenied, perms.Permission())
}

func TestSendTestTravelsTheFullPipeline(t *testing.T) {
	t.Parallel()

	alerter := &recordingAlerter{}
	perms := &memPermissions{}
	require.NoError(t, perms.SetPermission(model.PermissionGranted))

	a := New(perms, &scriptedPrompter{}, alerter, 0)
	sent := a.SendTest(7)

	assert.Equal(t, model.EventTypeTest, sent.Type)
	assert.NotEmpty(t, sent.ID)

	got := a.Events()
	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].ID)
	assert.Equal(t, 1, alerter.count())
}
