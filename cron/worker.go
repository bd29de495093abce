package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"notifyhub/config"
	notificationRepo "notifyhub/database/repository/notification"
	"notifyhub/models"
	"notifyhub/realtime"
	"notifyhub/services/alert"
	"notifyhub/services/directory"
	"notifyhub/services/tasks"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// countInvalidator drops a user's cached unread count after new deliveries.
type countInvalidator interface {
	InvalidateUnreadCount(ctx context.Context, userID string)
}

// FanoutDeps are the collaborators the fan-out worker needs.
type FanoutDeps struct {
	Repo     notificationRepo.NotificationRepository
	Resolver directory.Resolver
	Channel  realtime.Channel
	Alert    alert.AlertSink
	Counts   countInvalidator
	Logger   *zap.Logger
}

// InitFanoutWorker runs the async fan-out worker in the background.
func InitFanoutWorker(deps FanoutDeps) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisFanoutDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeNotificationFanout, handleFanoutTask(deps))

	// Start async worker with retry logic.
	go func() {
		log.Println("[FanoutWorker] starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[FanoutWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[FanoutWorker] max retry attempts reached, exiting")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

// handleFanoutTask creates the per-user delivery rows for a published
// notification, then pushes each joined record on the realtime channel and
// fires the device alert sink. Delivery insertion is idempotent, so an asynq
// retry never double-delivers.
func handleFanoutTask(deps FanoutDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload tasks.FanoutPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid fan-out payload: %w", err)
		}

		n, err := deps.Repo.GetNotificationByID(payload.NotificationID)
		if err != nil {
			return fmt.Errorf("fan-out: failed to load notification %s: %w", payload.NotificationID, err)
		}

		userIDs, err := deps.Resolver.Resolve(ctx, n.Audience)
		if err != nil {
			return fmt.Errorf("fan-out: failed to resolve audience for %s: %w", n.ID, err)
		}
		if len(userIDs) == 0 {
			deps.Logger.Info("fan-out resolved empty audience", zap.String("id", n.ID))
			return nil
		}

		now := time.Now()
		rows := make([]models.UserNotification, 0, len(userIDs))
		for _, userID := range userIDs {
			rows = append(rows, models.UserNotification{
				ID:             uuid.NewString(),
				NotificationID: n.ID,
				UserID:         userID,
				CreatedAt:      now,
			})
		}
		if err := deps.Repo.InsertDeliveries(rows); err != nil {
			return fmt.Errorf("fan-out: failed to insert deliveries for %s: %w", n.ID, err)
		}

		for _, row := range rows {
			rec := models.NotificationRecord{
				ID:                 n.ID,
				UserNotificationID: row.ID,
				Type:               n.Type,
				Title:              n.Title,
				Message:            n.Message,
				CreatedAt:          row.CreatedAt,
			}

			if deps.Counts != nil {
				deps.Counts.InvalidateUnreadCount(ctx, row.UserID)
			}

			if err := deps.Channel.Publish(ctx, row.UserID, rec); err != nil {
				deps.Logger.Warn("fan-out: realtime publish failed",
					zap.String("id", n.ID), zap.String("userID", row.UserID), zap.Error(err))
			}

			if err := deps.Alert.Notify(ctx, row.UserID, n.Title, n.Message, map[string]string{
				"type": n.Type,
				"id":   n.ID,
			}); err != nil {
				deps.Logger.Debug("fan-out: device alert failed",
					zap.String("userID", row.UserID), zap.Error(err))
			}
		}

		deps.Logger.Info("notification fan-out complete",
			zap.String("id", n.ID), zap.Int("deliveries", len(rows)))
		return nil
	}
}
