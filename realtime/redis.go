package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"notifyhub/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const topicPrefix = "notifications:user:"

// Topic returns the pub/sub topic carrying pushes for userID.
func Topic(userID string) string {
	return topicPrefix + userID
}

// RedisChannel implements Channel over Redis pub/sub.
type RedisChannel struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisChannel creates a Channel backed by the given Redis client.
func NewRedisChannel(client *redis.Client, logger *zap.Logger) *RedisChannel {
	return &RedisChannel{client: client, logger: logger}
}

// Publish marshals rec and publishes it on the user's topic.
func (c *RedisChannel) Publish(ctx context.Context, userID string, rec models.NotificationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal notification record: %w", err)
	}
	if err := c.client.Publish(ctx, Topic(userID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification for user %s: %w", userID, err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription on the user's topic and starts a
// delivery goroutine that decodes incoming payloads.
func (c *RedisChannel) Subscribe(ctx context.Context, userID string) (Handle, error) {
	pubsub := c.client.Subscribe(ctx, Topic(userID))

	// Force the subscribe handshake so a dead broker fails here, not on
	// first receive.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe for user %s: %w", userID, err)
	}

	h := &redisHandle{
		pubsub:  pubsub,
		records: make(chan models.NotificationRecord, 16),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer close(h.records)
		for msg := range pubsub.Channel() {
			var rec models.NotificationRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				c.logger.Warn("dropping malformed realtime payload",
					zap.String("userID", userID), zap.Error(err))
				continue
			}
			select {
			case h.records <- rec:
			default:
				// Slow consumer: drop rather than block the pub/sub reader.
				c.logger.Warn("dropping realtime record for slow consumer",
					zap.String("userID", userID), zap.String("id", rec.ID))
			}
		}
	}()

	return h, nil
}

type redisHandle struct {
	pubsub  *redis.PubSub
	records chan models.NotificationRecord
	done    chan struct{}
	once    sync.Once
}

func (h *redisHandle) Records() <-chan models.NotificationRecord { return h.records }

func (h *redisHandle) Done() <-chan struct{} { return h.done }

func (h *redisHandle) Close() error {
	var err error
	h.once.Do(func() {
		err = h.pubsub.Close()
	})
	return err
}
