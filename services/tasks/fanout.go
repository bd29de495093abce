package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TypeNotificationFanout = "notification:fanout"

// FanoutPayload carries the id of a published notification whose per-user
// deliveries still have to be created.
type FanoutPayload struct {
	NotificationID string `json:"notificationId"`
}

func NewFanoutTask(payload FanoutPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeNotificationFanout, b)
	opts := []asynq.Option{asynq.MaxRetry(5)}

	return task, opts, nil
}
