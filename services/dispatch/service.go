package dispatch

import (
	"context"
	"fmt"
	"time"

	notificationRepo "notifyhub/database/repository/notification"
	"notifyhub/models"
	"notifyhub/services/tasks"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultDispatchService is the production implementation.
type DefaultDispatchService struct {
	Repo     notificationRepo.NotificationRepository
	Enqueuer Enqueuer
	Logger   *zap.Logger
}

// NewDefaultDispatchService wires a dispatcher from its collaborators.
func NewDefaultDispatchService(
	repo notificationRepo.NotificationRepository,
	enqueuer Enqueuer,
	logger *zap.Logger,
) (*DefaultDispatchService, error) {
	if repo == nil || enqueuer == nil {
		return nil, fmt.Errorf("dispatch service initialization error: repository or enqueuer is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultDispatchService{Repo: repo, Enqueuer: enqueuer, Logger: logger}, nil
}

// Publish validates the request, persists the notification content row, and
// enqueues the fan-out task that creates per-user deliveries.
func (s *DefaultDispatchService) Publish(ctx context.Context, createdBy string, in PublishInput) (*models.Notification, error) {
	if !models.ValidType(in.Type) {
		return nil, fmt.Errorf("invalid notification type %q", in.Type)
	}
	if in.Title == "" || in.Message == "" {
		return nil, fmt.Errorf("title and message are required")
	}
	if !in.Audience.Valid() {
		return nil, fmt.Errorf("invalid audience %q/%q", in.Audience.Kind, in.Audience.Value)
	}

	n := &models.Notification{
		ID:        uuid.NewString(),
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Audience:  in.Audience,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	if err := s.Repo.CreateNotification(n); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	task, opts, err := tasks.NewFanoutTask(tasks.FanoutPayload{NotificationID: n.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to build fan-out task: %w", err)
	}
	info, err := s.Enqueuer.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue fan-out for notification %s: %w", n.ID, err)
	}

	s.Logger.Info("notification published",
		zap.String("id", n.ID),
		zap.String("audience", n.Audience.Kind),
		zap.String("taskID", info.ID))
	return n, nil
}
