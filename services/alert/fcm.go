package alert

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// TokenLookup resolves a user's current FCM device token. An empty token
// means the user has no registered device.
type TokenLookup interface {
	FCMToken(ctx context.Context, userID string) (string, error)
}

// FCMSink sends device pushes through Firebase Cloud Messaging.
type FCMSink struct {
	Client *messaging.Client
	Tokens TokenLookup
}

// NewFCMSink creates an FCM-backed alert sink.
func NewFCMSink(client *messaging.Client, tokens TokenLookup) (*FCMSink, error) {
	if client == nil || tokens == nil {
		return nil, fmt.Errorf("fcm sink initialization error: client or token lookup is nil")
	}
	return &FCMSink{Client: client, Tokens: tokens}, nil
}

// Notify looks up the user's FCM token and sends a push.
func (s *FCMSink) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	token, err := s.Tokens.FCMToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("Notify: could not look up token for user %s: %w", userID, err)
	}
	if token == "" {
		// No registered device, nothing to do.
		return nil
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "notifications",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := s.Client.Send(ctx, msg); err != nil {
		return fmt.Errorf("Notify: failed to send FCM message to user %s: %w", userID, err)
	}
	return nil
}
