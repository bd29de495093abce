// File: database/repository/notification/notificationMongoQueries.go
package notificationRepo

import (
	"fmt"
	"time"

	"notifyhub/models"

	"go.mongodb.org/mongo-driver/bson"
)

// UnreadCount returns the number of unread delivery rows for userID.
func (r *MongoNotificationRepo) UnreadCount(userID string) (int64, error) {
	ctx, cancel := newContext(5 * time.Second)
	defer cancel()

	count, err := r.deliveries.CountDocuments(ctx, bson.M{"userId": userID, "isRead": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications for user %s: %w", userID, err)
	}
	return count, nil
}

// ListForUser returns up to limit joined notification records for userID,
// newest first. The join pulls the shared content row into each delivery.
func (r *MongoNotificationRepo) ListForUser(userID string, limit int64) ([]models.NotificationRecord, error) {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	pipeline := []bson.M{
		{"$match": bson.M{"userId": userID}},
		{"$sort": bson.M{"createdAt": -1}},
		{"$limit": limit},
		{"$lookup": bson.M{
			"from":         "notifications",
			"localField":   "notificationId",
			"foreignField": "id",
			"as":           "content",
		}},
		{"$unwind": "$content"},
		{"$project": bson.M{
			"_id":                0,
			"id":                 "$notificationId",
			"userNotificationId": "$id",
			"type":               "$content.type",
			"title":              "$content.title",
			"message":            "$content.message",
			"isRead":             1,
			"readAt":             1,
			"createdAt":          1,
		}},
	}

	cursor, err := r.deliveries.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var records []models.NotificationRecord
	for cursor.Next(ctx) {
		var rec models.NotificationRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode notification record: %w", err)
		}
		records = append(records, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error listing notifications for user %s: %w", userID, err)
	}
	return records, nil
}
