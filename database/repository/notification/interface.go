package notificationRepo

import (
	"errors"

	"notifyhub/models"
)

// ErrNotFound is returned when a delivery row does not exist.
var ErrNotFound = errors.New("user notification not found")

// ErrNotOwner is returned when a delivery row exists but belongs to a
// different user than the caller.
var ErrNotOwner = errors.New("user notification not owned by caller")

// NotificationRepository defines persistence operations for notifications
// and their per-user delivery rows.
type NotificationRepository interface {
	// Content rows.
	CreateNotification(n *models.Notification) error
	GetNotificationByID(id string) (*models.Notification, error)

	// Delivery rows.
	InsertDeliveries(rows []models.UserNotification) error

	// Read-side queries, newest first.
	UnreadCount(userID string) (int64, error)
	ListForUser(userID string, limit int64) ([]models.NotificationRecord, error)

	// Read-state transitions.
	MarkRead(userID, userNotificationID string) error
	MarkAllRead(userID string) error
	ClearRead(userID string) error
}
