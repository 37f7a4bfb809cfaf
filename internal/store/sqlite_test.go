package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/patient-portal/internal/model"
	"github.com/nhle/patient-portal/tests/testutil"
)

func notification(id, title string, createdAt time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		Title:     title,
		Message:   "body of " + id,
		CreatedAt: createdAt,
	}
}

func TestUpsertAndGetNotifications(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertNotifications(ctx, 1, []model.Notification{
		notification("n1", "Appointment", base),
		notification("n2", "Bill ready", base.Add(time.Hour)),
		notification("n3", "Visit summary", base.Add(2*time.Hour)),
	}))

	got, err := s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, "n3", got[0].ID)
	assert.Equal(t, "n1", got[2].ID)
	assert.Equal(t, base.Add(2*time.Hour), got[0].CreatedAt)
	assert.False(t, got[0].Read)
}

func TestHistoryIsScopedToAccount(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertNotifications(ctx, 1, []model.Notification{
		notification("a1", "Lab result", base),
	}))
	require.NoError(t, s.UpsertNotifications(ctx, 2, []model.Notification{
		notification("b1", "Bill ready", base.Add(time.Hour)),
	}))

	// Each account sees only its own rows on the shared machine.
	got, err := s.GetNotifications(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bill ready", got[0].Title)

	got, err = s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Lab result", got[0].Title)

	// The unread badge counts one account's rows, not the table's.
	count, err := s.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Marking a row read under the wrong account changes nothing.
	require.NoError(t, s.MarkNotificationRead(ctx, 2, "a1"))
	count, err = s.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSameNotificationIDAcrossAccounts(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertNotifications(ctx, 1, []model.Notification{
		notification("n1", "For account one", created),
	}))
	require.NoError(t, s.UpsertNotifications(ctx, 2, []model.Notification{
		notification("n1", "For account two", created),
	}))

	got, err := s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "For account one", got[0].Title)
}

func TestUpsertPreservesLocalReadFlag(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertNotifications(ctx, 1, []model.Notification{
		notification("n1", "Appointment", created),
	}))
	require.NoError(t, s.MarkNotificationRead(ctx, 1, "n1"))

	// A history refresh re-delivers the same row with updated content but
	// no read state.
	require.NoError(t, s.UpsertNotifications(ctx, 1, []model.Notification{
		notification("n1", "Appointment (rescheduled)", created),
	}))

	got, err := s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Appointment (rescheduled)", got[0].Title)
	assert.True(t, got[0].Read)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertNotifications(ctx, 1, []model.Notification{
		notification("n1", "One", base),
		notification("n2", "Two", base.Add(time.Minute)),
	}))

	count, err := s.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkNotificationRead(ctx, 1, "n1"))

	count, err = s.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Marking the same row again is a no-op.
	require.NoError(t, s.MarkNotificationRead(ctx, 1, "n1"))
	count, err = s.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEmptyUpsertIsNoOp(t *testing.T) {
	t.Parallel()

	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertNotifications(ctx, 1, nil))

	got, err := s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}
