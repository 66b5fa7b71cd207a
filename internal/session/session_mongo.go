package session

import (
	"context"
	"errors"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollection = "reading_sessions"

// SessionMongo sessions in the reading_sessions collection
type SessionMongo struct {
	DB *driver.MongoDB
}

var _ SessionRepository = &SessionMongo{}

// NewSessionMongo .
func NewSessionMongo(DB *driver.MongoDB) *SessionMongo {
	return &SessionMongo{DB}
}

// Migrate .
func (repo *SessionMongo) Migrate(ctx context.Context) error {
	_, err := repo.DB.Collection(sessionCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "end_time", Value: -1}},
	})
	return err
}

// Save .
func (repo *SessionMongo) Save(ctx context.Context, r *Record) error {
	_, err := repo.DB.Collection(sessionCollection).InsertOne(ctx, r)
	return err
}

// Delete .
func (repo *SessionMongo) Delete(ctx context.Context, userID, id string) error {
	_, err := repo.DB.Collection(sessionCollection).DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	return err
}

// Get .
func (repo *SessionMongo) Get(ctx context.Context, userID, id string) (*Record, error) {
	r := new(Record)
	err := repo.DB.Collection(sessionCollection).FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListByUser .
func (repo *SessionMongo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "end_time", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := repo.DB.Collection(sessionCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}

	result := []*Record{}
	if err := cur.All(ctx, &result); err != nil {
		return nil, err
	}
	return result, nil
}
