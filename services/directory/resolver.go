// Package directory resolves audience segments to concrete user ids. The
// user directory itself belongs to the surrounding identity system; this
// package only reads it.
package directory

import (
	"context"
	"fmt"
	"time"

	"notifyhub/config"
	"notifyhub/database"
	"notifyhub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Resolver maps an audience segment to the user ids it targets.
type Resolver interface {
	Resolve(ctx context.Context, aud models.Audience) ([]string, error)
}

// MongoResolver reads the shared users collection.
type MongoResolver struct {
	coll *mongo.Collection
}

// NewMongoResolver creates a Resolver over the users collection.
func NewMongoResolver() *MongoResolver {
	coll := database.MongoClient.Database(config.AppConfig.DatabaseName).Collection("users")
	return &MongoResolver{coll: coll}
}

// Resolve returns every user id matching the audience segment.
func (r *MongoResolver) Resolve(ctx context.Context, aud models.Audience) ([]string, error) {
	if !aud.Valid() {
		return nil, fmt.Errorf("invalid audience %q/%q", aud.Kind, aud.Value)
	}

	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	filter := bson.M{}
	switch aud.Kind {
	case models.AudienceRole:
		filter["role"] = aud.Value
	case models.AudienceCompany:
		filter["companyId"] = aud.Value
	}

	raw, err := r.coll.Distinct(cctx, "id", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience %s: %w", aud.Kind, err)
	}

	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// StaticResolver serves a fixed directory; used in development and tests.
type StaticResolver struct {
	Users []StaticUser
}

// StaticUser is one entry of a StaticResolver directory.
type StaticUser struct {
	ID        string
	Role      string
	CompanyID string
}

// Resolve filters the static directory by the audience segment.
func (r *StaticResolver) Resolve(ctx context.Context, aud models.Audience) ([]string, error) {
	if !aud.Valid() {
		return nil, fmt.Errorf("invalid audience %q/%q", aud.Kind, aud.Value)
	}

	var ids []string
	for _, u := range r.Users {
		switch aud.Kind {
		case models.AudienceAll:
			ids = append(ids, u.ID)
		case models.AudienceRole:
			if u.Role == aud.Value {
				ids = append(ids, u.ID)
			}
		case models.AudienceCompany:
			if u.CompanyID == aud.Value {
				ids = append(ids, u.ID)
			}
		}
	}
	return ids, nil
}
