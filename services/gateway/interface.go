// Package gateway is the operation boundary the notification store depends
// on: paginated fetch, unread count, read-state writes, and the realtime
// subscription pair.
package gateway

import (
	"context"

	notificationRepo "notifyhub/database/repository/notification"
	"notifyhub/models"
	"notifyhub/realtime"
)

// ErrNotOwner is returned by MarkOneRead when the delivery row exists but
// belongs to a different user.
var ErrNotOwner = notificationRepo.ErrNotOwner

// ErrNotFound is returned by MarkOneRead when the delivery row does not exist.
var ErrNotFound = notificationRepo.ErrNotFound

// Gateway exposes the notification operations as plain stateless calls.
type Gateway interface {
	FetchUnreadCount(ctx context.Context, userID string) (int, error)
	// FetchList returns up to limit records, newest first.
	FetchList(ctx context.Context, userID string, limit int) ([]models.NotificationRecord, error)
	// MarkOneRead fails with ErrNotOwner if the row does not belong to userID.
	MarkOneRead(ctx context.Context, userID, userNotificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
	// ClearRead deletes only rows where is_read is true.
	ClearRead(ctx context.Context, userID string) error
	// Subscribe opens a push channel for userID. Each server-side insertion
	// is delivered at most once, with no ordering guarantee relative to
	// concurrent FetchList calls.
	Subscribe(ctx context.Context, userID string) (realtime.Handle, error)
	// Unsubscribe is idempotent and safe to call multiple times.
	Unsubscribe(h realtime.Handle) error
}
