package dispatch

import (
	"context"

	"notifyhub/models"

	"github.com/hibiken/asynq"
)

// PublishInput is an administrative request to send a notification to an
// audience segment.
type PublishInput struct {
	Type     string          `json:"type" binding:"required"`
	Title    string          `json:"title" binding:"required"`
	Message  string          `json:"message" binding:"required"`
	Audience models.Audience `json:"audience" binding:"required"`
}

// DispatchService publishes notifications and hands delivery to the fan-out
// worker.
type DispatchService interface {
	Publish(ctx context.Context, createdBy string, in PublishInput) (*models.Notification, error)
}

// Enqueuer is the slice of the asynq client the dispatcher needs; tests
// substitute a fake.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
