package user

import (
	"context"
	"errors"

	"github.com/pot-code/speedread/internal/infrastructure/driver"
	"github.com/pot-code/speedread/internal/infrastructure/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const userCollection = "users"

// UserMongo accounts in the users collection
type UserMongo struct {
	DB            *driver.MongoDB
	UUIDGenerator uuid.Generator
}

var _ UserRepository = &UserMongo{}

// NewUserMongo .
func NewUserMongo(DB *driver.MongoDB, UUIDGenerator uuid.Generator) *UserMongo {
	return &UserMongo{DB, UUIDGenerator}
}

// Migrate unique username and email
func (repo *UserMongo) Migrate(ctx context.Context) error {
	_, err := repo.DB.Collection(userCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

// FindByCredential .
func (repo *UserMongo) FindByCredential(ctx context.Context, username, email string) (*UserModel, error) {
	user := new(UserModel)
	err := repo.DB.Collection(userCollection).FindOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUser .
func (repo *UserMongo) SaveUser(ctx context.Context, post *UserModel) error {
	id, err := repo.UUIDGenerator.Generate()
	if err != nil {
		return err
	}
	post.ID = id

	_, err = repo.DB.Collection(userCollection).InsertOne(ctx, post)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicatedUser
	}
	return err
}

// UpdateLogin .
func (repo *UserMongo) UpdateLogin(ctx context.Context, post *UserModel) error {
	_, err := repo.DB.Collection(userCollection).UpdateOne(ctx, bson.M{"_id": post.ID}, bson.M{
		"$set": bson.M{"login_retry": post.LoginRetry, "last_login": post.LastLogin},
	})
	return err
}
