package models

import "time"

// Notification types control icon/color on the client, nothing else.
const (
	TypeInfo        = "info"
	TypeSuccess     = "success"
	TypeWarning     = "warning"
	TypeMaintenance = "maintenance"
	TypeService     = "service"
)

// ValidType reports whether t is one of the supported notification types.
func ValidType(t string) bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeMaintenance, TypeService:
		return true
	}
	return false
}

// Notification is the system-wide content row, created once per publish.
type Notification struct {
	ID        string    `bson:"id" json:"id"`
	Type      string    `bson:"type" json:"type"`
	Title     string    `bson:"title" json:"title"`
	Message   string    `bson:"message" json:"message"`
	Audience  Audience  `bson:"audience" json:"audience"`
	CreatedBy string    `bson:"createdBy" json:"createdBy"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// UserNotification is the per-user delivery and read-marker row.
type UserNotification struct {
	ID             string     `bson:"id" json:"id"`
	NotificationID string     `bson:"notificationId" json:"notificationId"`
	UserID         string     `bson:"userId" json:"userId"`
	IsRead         bool       `bson:"isRead" json:"isRead"`
	ReadAt         *time.Time `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
}

// NotificationRecord is the joined shape delivered to clients: the content
// plus one user's read marker. ReadAt is non-nil exactly when IsRead is true.
type NotificationRecord struct {
	ID                 string     `bson:"id" json:"id"`
	UserNotificationID string     `bson:"userNotificationId" json:"userNotificationId"`
	Type               string     `bson:"type" json:"type"`
	Title              string     `bson:"title" json:"title"`
	Message            string     `bson:"message" json:"message"`
	IsRead             bool       `bson:"isRead" json:"isRead"`
	ReadAt             *time.Time `bson:"readAt,omitempty" json:"readAt,omitempty"`
	CreatedAt          time.Time  `bson:"createdAt" json:"createdAt"`
}

// SyncState tracks whether a record's optimistic local mutation has been
// confirmed by the backend.
type SyncState int

const (
	SyncClean SyncState = iota
	SyncPending
	SyncFailed
)

func (s SyncState) String() string {
	switch s {
	case SyncPending:
		return "pending"
	case SyncFailed:
		return "failed"
	default:
		return "clean"
	}
}
