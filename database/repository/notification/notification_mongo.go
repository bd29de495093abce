package notificationRepo

import (
	"context"
	"fmt"
	"time"

	"notifyhub/config"
	"notifyhub/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoNotificationRepo implements NotificationRepository using MongoDB.
type MongoNotificationRepo struct {
	notifications *mongo.Collection
	deliveries    *mongo.Collection
}

// NewMongoNotificationRepo creates a new instance of NotificationRepository using MongoDB.
func NewMongoNotificationRepo() NotificationRepository {
	db := database.MongoClient.Database(config.AppConfig.DatabaseName)
	repo := &MongoNotificationRepo{
		notifications: db.Collection("notifications"),
		deliveries:    db.Collection("user_notifications"),
	}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create indexes: %v\n", err)
	}
	return repo
}

// newContext creates a context with the given timeout.
func newContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// ensureIndexes creates indexes for fields frequently used in queries.
func (r *MongoNotificationRepo) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	notifIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := r.notifications.Indexes().CreateMany(ctx, notifIndexes); err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}

	deliveryIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		// One delivery row per (user, notification) pair.
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "notificationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isRead", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := r.deliveries.Indexes().CreateMany(ctx, deliveryIndexes); err != nil {
		return fmt.Errorf("failed to create delivery indexes: %w", err)
	}
	return nil
}
