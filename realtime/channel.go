// Package realtime provides the push channel used to deliver newly created
// notifications to live client sessions without polling.
package realtime

import (
	"context"

	"notifyhub/models"
)

// Handle is a live subscription to one user's notification topic.
type Handle interface {
	// Records streams pushed notification records. The channel is closed
	// when the subscription ends, whatever the cause.
	Records() <-chan models.NotificationRecord
	// Done is closed when the subscription has terminated, either by Close
	// or by an underlying transport drop.
	Done() <-chan struct{}
	// Close tears the subscription down. Idempotent; calling it on an
	// already-closed handle is a no-op.
	Close() error
}

// Channel is a publish/subscribe primitive keyed by user id. Subscribers
// receive every record published for their user after the subscription is
// established; there is no replay and no ordering guarantee relative to
// concurrent list fetches.
type Channel interface {
	Subscribe(ctx context.Context, userID string) (Handle, error)
	Publish(ctx context.Context, userID string, rec models.NotificationRecord) error
}
