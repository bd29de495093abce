// Package alert defines the best-effort device alert side channel. It is
// never a source of truth: a failed alert is logged and forgotten, and the
// notification itself still reaches the user through fetch or realtime push.
package alert

import "context"

// AlertSink delivers an out-of-band alert (device push, OS notification) for
// a freshly delivered notification.
type AlertSink interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string) error
}

// NoopSink is used in environments and tests without a push capability.
type NoopSink struct{}

func (NoopSink) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	return nil
}
