package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"research-chat/internal/db"
	"research-chat/internal/models"
)

// MongoGroupRepo keeps member ids embedded in the group document.
type MongoGroupRepo struct {
	coll *mongo.Collection
}

// NewMongoGroupRepo constructs a MongoGroupRepo.
func NewMongoGroupRepo(mdb *mongo.Database) *MongoGroupRepo {
	return &MongoGroupRepo{coll: mdb.Collection(db.GroupsCollection)}
}

func (r *MongoGroupRepo) CreateGroup(ctx context.Context, adminID, name, description string, memberIDs []string) (models.Group, error) {
	now := time.Now().UTC()
	group := models.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		AdminID:     adminID,
		MemberIDs:   MemberSet(adminID, memberIDs),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.coll.InsertOne(ctx, group); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

func (r *MongoGroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	var group models.Group
	err := r.coll.FindOne(ctx, bson.M{"_id": groupID}).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

func (r *MongoGroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"member_ids": userID, "is_active": true},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	groups := []models.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *MongoGroupRepo) ListGroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"member_ids": userID, "is_active": true},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (r *MongoGroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": groupID, "member_ids": userID})
	return count > 0, err
}

func (r *MongoGroupRepo) UpdateGroup(ctx context.Context, groupID string, update models.GroupUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	return r.updateOne(ctx, groupID, bson.M{"$set": set})
}

func (r *MongoGroupRepo) UpdateGroupPhoto(ctx context.Context, groupID, photoURL string) error {
	return r.updateOne(ctx, groupID, bson.M{"$set": bson.M{"photo_url": photoURL, "updated_at": time.Now().UTC()}})
}

func (r *MongoGroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": groupID, "member_ids": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"member_ids": userID}, "$set": bson.M{"updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrState(ctx, groupID, ErrAlreadyMember)
	}
	return nil
}

func (r *MongoGroupRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": groupID, "member_ids": userID},
		bson.M{"$pull": bson.M{"member_ids": userID}, "$set": bson.M{"updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrState(ctx, groupID, ErrNotMember)
	}
	return nil
}

func (r *MongoGroupRepo) SetGroupLastMessage(ctx context.Context, groupID, messageID string) error {
	return r.updateOne(ctx, groupID, bson.M{"$set": bson.M{"last_message_id": messageID, "updated_at": time.Now().UTC()}})
}

func (r *MongoGroupRepo) updateOne(ctx context.Context, groupID string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": groupID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// missOrState tells a missing group apart from a membership precondition miss.
func (r *MongoGroupRepo) missOrState(ctx context.Context, groupID string, stateErr error) error {
	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": groupID})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrGroupNotFound
	}
	return stateErr
}
