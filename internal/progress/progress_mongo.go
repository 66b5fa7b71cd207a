package progress

import (
	"context"
	"errors"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const progressCollection = "user_progress"

// ProgressMongo progress records in the user_progress collection
type ProgressMongo struct {
	DB *driver.MongoDB
}

var _ ProgressRepository = &ProgressMongo{}

// NewProgressMongo .
func NewProgressMongo(DB *driver.MongoDB) *ProgressMongo {
	return &ProgressMongo{DB}
}

// Migrate unique user_id index plus the leaderboard sort index
func (repo *ProgressMongo) Migrate(ctx context.Context) error {
	_, err := repo.DB.Collection(progressCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "statistics.average_wpm", Value: -1}},
		},
	})
	return err
}

// Load .
func (repo *ProgressMongo) Load(ctx context.Context, userID string) (*UserProgress, error) {
	p := new(UserProgress)
	err := repo.DB.Collection(progressCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Save insert when expectedVersion is 0, otherwise replace the document
// holding expectedVersion
func (repo *ProgressMongo) Save(ctx context.Context, p *UserProgress, expectedVersion int64) error {
	coll := repo.DB.Collection(progressCollection)
	next := *p
	next.Version = expectedVersion + 1

	if expectedVersion == 0 {
		_, err := coll.InsertOne(ctx, &next)
		if mongo.IsDuplicateKeyError(err) {
			return ErrVersionConflict
		}
		if err != nil {
			return err
		}
		p.Version = next.Version
		return nil
	}

	res, err := coll.ReplaceOne(ctx, bson.M{"user_id": next.UserID, "version": expectedVersion}, &next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	p.Version = next.Version
	return nil
}

// Leaderboard users with at least one session, fastest average first
func (repo *ProgressMongo) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "statistics.average_wpm", Value: -1}, {Key: "user_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := repo.DB.Collection(progressCollection).Find(ctx, bson.M{"statistics.total_sessions": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := []*LeaderboardEntry{}
	for cur.Next(ctx) {
		var p UserProgress
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		result = append(result, &LeaderboardEntry{
			UserID:        p.UserID,
			AverageWPM:    p.Statistics.AverageWPM,
			BestWPM:       p.Statistics.BestWPM,
			TotalSessions: p.Statistics.TotalSessions,
		})
	}
	return result, cur.Err()
}
