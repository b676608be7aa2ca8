package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"research-chat/internal/db"
	"research-chat/internal/models"
)

// MongoUserRepo reads the identity subsystem's users collection.
type MongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo constructs a MongoUserRepo.
func NewMongoUserRepo(mdb *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{coll: mdb.Collection(db.UsersCollection)}
}

func (r *MongoUserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *MongoUserRepo) GetUsers(ctx context.Context, ids []string) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoUserRepo) ListUsersByRole(ctx context.Context, role, excludeID string) ([]models.User, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"role": role, "_id": bson.M{"$ne": excludeID}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
