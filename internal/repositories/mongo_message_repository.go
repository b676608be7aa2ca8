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

// MongoMessageRepo stores messages of both chat kinds in one collection.
type MongoMessageRepo struct {
	coll *mongo.Collection
}

// NewMongoMessageRepo constructs a MongoMessageRepo.
func NewMongoMessageRepo(mdb *mongo.Database) *MongoMessageRepo {
	return &MongoMessageRepo{coll: mdb.Collection(db.MessagesCollection)}
}

func (r *MongoMessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.ID = uuid.NewString()
	msg.IsDeleted = false
	msg.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (r *MongoMessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

func (r *MongoMessageRepo) GetMessagesByIDs(ctx context.Context, ids []string) ([]models.Message, error) {
	msgs := []models.Message{}
	if len(ids) == 0 {
		return msgs, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MongoMessageRepo) ListMessages(ctx context.Context, ref models.ChatRef) ([]models.Message, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"chat_type": ref.Type, "chat_id": ref.ID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	msgs := []models.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MongoMessageRepo) SoftDeleteMessage(ctx context.Context, messageID, senderID, placeholder string) (models.Message, error) {
	var msg models.Message
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "sender_id": senderID},
		bson.M{"$set": bson.M{"is_deleted": true, "content": placeholder}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
