// File: database/repository/notification/notificationMongoCrud.go
package notificationRepo

import (
	"fmt"
	"time"

	"notifyhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateNotification inserts a new notification content document.
func (r *MongoNotificationRepo) CreateNotification(n *models.Notification) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := r.notifications.InsertOne(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetNotificationByID retrieves a notification content document by its ID.
func (r *MongoNotificationRepo) GetNotificationByID(id string) (*models.Notification, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	var n models.Notification
	if err := r.notifications.FindOne(ctx, bson.M{"id": id}).Decode(&n); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch notification with id %s: %w", id, err)
	}
	return &n, nil
}

// InsertDeliveries bulk-inserts per-user delivery rows. Duplicate
// (user, notification) pairs are skipped rather than failing the batch, so a
// retried fan-out task never double-delivers.
func (r *MongoNotificationRepo) InsertDeliveries(rows []models.UserNotification) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	docs := make([]interface{}, 0, len(rows))
	now := time.Now()
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		docs = append(docs, rows[i])
	}

	opts := options.InsertMany().SetOrdered(false)
	_, err := r.deliveries.InsertMany(ctx, docs, opts)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to insert delivery rows: %w", err)
	}
	return nil
}

// MarkRead flips a single delivery row to read and stamps readAt. The row
// must belong to userID; marking an already-read row is a no-op.
func (r *MongoNotificationRepo) MarkRead(userID, userNotificationID string) error {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	now := time.Now()
	filter := bson.M{"id": userNotificationID, "userId": userID, "isRead": false}
	update := bson.M{"$set": bson.M{"isRead": true, "readAt": now}}

	result, err := r.deliveries.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", userNotificationID, err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: distinguish already-read, wrong owner, and missing.
	var existing models.UserNotification
	err = r.deliveries.FindOne(ctx, bson.M{"id": userNotificationID}).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect notification %s: %w", userNotificationID, err)
	}
	if existing.UserID != userID {
		return ErrNotOwner
	}
	return nil
}

// MarkAllRead flips every unread delivery row of userID to read.
func (r *MongoNotificationRepo) MarkAllRead(userID string) error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	now := time.Now()
	filter := bson.M{"userId": userID, "isRead": false}
	update := bson.M{"$set": bson.M{"isRead": true, "readAt": now}}

	if _, err := r.deliveries.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to mark all notifications read for user %s: %w", userID, err)
	}
	return nil
}

// ClearRead deletes every read delivery row of userID. Unread rows are
// never touched.
func (r *MongoNotificationRepo) ClearRead(userID string) error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	filter := bson.M{"userId": userID, "isRead": true}
	if _, err := r.deliveries.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to clear read notifications for user %s: %w", userID, err)
	}
	return nil
}

// isDuplicateKeyError reports whether err is (or wraps) a mongo duplicate-key
// write error.
func isDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
