package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	notificationRepo "notifyhub/database/repository/notification"
	"notifyhub/models"
	"notifyhub/realtime"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	unreadCountKeyPrefix = "unread:"
	unreadCountTTL       = 10 * time.Second
)

// DefaultGateway is the production implementation backed by the Mongo
// repository and the Redis realtime channel. Cache is optional; when nil the
// unread count always hits the repository.
type DefaultGateway struct {
	Repo    notificationRepo.NotificationRepository
	Channel realtime.Channel
	Cache   *redis.Client
	Logger  *zap.Logger
}

// NewDefaultGateway wires a gateway from its collaborators.
func NewDefaultGateway(
	repo notificationRepo.NotificationRepository,
	channel realtime.Channel,
	cache *redis.Client,
	logger *zap.Logger,
) (*DefaultGateway, error) {
	if repo == nil || channel == nil {
		return nil, fmt.Errorf("gateway initialization error: repository or channel is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultGateway{Repo: repo, Channel: channel, Cache: cache, Logger: logger}, nil
}

// FetchUnreadCount returns the user's unread count, served from a short-TTL
// cache when available.
func (g *DefaultGateway) FetchUnreadCount(ctx context.Context, userID string) (int, error) {
	if g.Cache != nil {
		if cached, err := g.Cache.Get(ctx, unreadCountKeyPrefix+userID).Result(); err == nil {
			if n, convErr := strconv.Atoi(cached); convErr == nil {
				return n, nil
			}
		} else if err != redis.Nil {
			g.Logger.Debug("unread count cache read failed", zap.Error(err))
		}
	}

	count, err := g.Repo.UnreadCount(userID)
	if err != nil {
		return 0, err
	}

	if g.Cache != nil {
		if err := g.Cache.Set(ctx, unreadCountKeyPrefix+userID, strconv.FormatInt(count, 10), unreadCountTTL).Err(); err != nil {
			g.Logger.Debug("unread count cache write failed", zap.Error(err))
		}
	}
	return int(count), nil
}

// FetchList returns up to limit records for userID, newest first.
func (g *DefaultGateway) FetchList(ctx context.Context, userID string, limit int) ([]models.NotificationRecord, error) {
	return g.Repo.ListForUser(userID, int64(limit))
}

// MarkOneRead flips a single delivery row; the write invalidates the cached
// unread count.
func (g *DefaultGateway) MarkOneRead(ctx context.Context, userID, userNotificationID string) error {
	if err := g.Repo.MarkRead(userID, userNotificationID); err != nil {
		return err
	}
	g.InvalidateUnreadCount(ctx, userID)
	return nil
}

// MarkAllRead flips every unread row for userID.
func (g *DefaultGateway) MarkAllRead(ctx context.Context, userID string) error {
	if err := g.Repo.MarkAllRead(userID); err != nil {
		return err
	}
	g.InvalidateUnreadCount(ctx, userID)
	return nil
}

// ClearRead deletes the user's read rows only.
func (g *DefaultGateway) ClearRead(ctx context.Context, userID string) error {
	if err := g.Repo.ClearRead(userID); err != nil {
		return err
	}
	g.InvalidateUnreadCount(ctx, userID)
	return nil
}

// Subscribe opens the user's realtime push channel.
func (g *DefaultGateway) Subscribe(ctx context.Context, userID string) (realtime.Handle, error) {
	return g.Channel.Subscribe(ctx, userID)
}

// Unsubscribe closes a subscription handle. Safe to call more than once.
func (g *DefaultGateway) Unsubscribe(h realtime.Handle) error {
	if h == nil {
		return nil
	}
	return h.Close()
}

// InvalidateUnreadCount drops the cached unread count for userID. Called by
// every read-state write and by the fan-out worker after new deliveries.
func (g *DefaultGateway) InvalidateUnreadCount(ctx context.Context, userID string) {
	if g.Cache == nil {
		return
	}
	if err := g.Cache.Del(ctx, unreadCountKeyPrefix+userID).Err(); err != nil {
		g.Logger.Debug("unread count cache invalidation failed",
			zap.String("userID", userID), zap.Error(err))
	}
}
