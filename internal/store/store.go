package store

import (
	"context"

	"github.com/nhle/patient-portal/internal/model"
)

// Store defines the persistence interface for the locally cached
// notification history. The cache mirrors the gateway's REST listing and
// carries a local read flag; it is a separate view from the live push log.
// Every row belongs to exactly one account and every query is scoped to
// one: the machine is shared, the cache must never leak one account's
// history into another's feed.
type Store interface {
	// UpsertNotifications inserts or refreshes history rows for one
	// account, preserving the local read flag on rows that already exist.
	UpsertNotifications(ctx context.Context, accountID int, notifications []model.Notification) error

	// GetNotifications returns the account's cached history, newest first.
	GetNotifications(ctx context.Context, accountID int) ([]model.Notification, error)

	// MarkNotificationRead flags one of the account's rows as seen.
	MarkNotificationRead(ctx context.Context, accountID int, id string) error

	// UnreadCount returns the number of the account's unseen rows.
	UnreadCount(ctx context.Context, accountID int) (int, error)

	// Close releases the underlying database.
	Close() error
}
