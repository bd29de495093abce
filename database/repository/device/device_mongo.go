package deviceRepo

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

// DeviceRepository stores the FCM device token registered by each user's
// most recent session.
type DeviceRepository interface {
	SetFCMToken(ctx context.Context, userID, token string) error
	FCMToken(ctx context.Context, userID string) (string, error)
}

// MongoDeviceRepo implements DeviceRepository using MongoDB.
type MongoDeviceRepo struct {
	coll *mongo.Collection
}

// NewMongoDeviceRepo creates a new instance of DeviceRepository using MongoDB.
func NewMongoDeviceRepo() DeviceRepository {
	coll := database.MongoClient.Database(config.AppConfig.DatabaseName).Collection("devices")
	repo := &MongoDeviceRepo{coll: coll}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		fmt.Printf("failed to create device indexes: %v\n", err)
	}
	return repo
}

type deviceDoc struct {
	UserID    string    `bson:"userId"`
	FCMToken  string    `bson:"fcmToken"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// SetFCMToken upserts the user's device token.
func (r *MongoDeviceRepo) SetFCMToken(ctx context.Context, userID, token string) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"userId": userID}
	update := bson.M{"$set": bson.M{"fcmToken": token, "updatedAt": time.Now()}}
	opts := options.Update().SetUpsert(true)

	if _, err := r.coll.UpdateOne(cctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to set FCM token for user %s: %w", userID, err)
	}
	return nil
}

// FCMToken returns the user's registered token, or empty when none exists.
func (r *MongoDeviceRepo) FCMToken(ctx context.Context, userID string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc deviceDoc
	err := r.coll.FindOne(cctx, bson.M{"userId": userID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch device for user %s: %w", userID, err)
	}
	return doc.FCMToken, nil
}
