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

// MongoChatRepo stores direct chats as documents keyed by a unique sorted pair.
type MongoChatRepo struct {
	coll *mongo.Collection
}

// NewMongoChatRepo constructs a MongoChatRepo.
func NewMongoChatRepo(mdb *mongo.Database) *MongoChatRepo {
	return &MongoChatRepo{coll: mdb.Collection(db.DirectChatsCollection)}
}

type directChatDoc struct {
	models.DirectChat `bson:",inline"`
	PairKey           string `bson:"pair_key"`
}

func (r *MongoChatRepo) CreateOrGetDirectChat(ctx context.Context, userID, recipientID string) (models.DirectChat, error) {
	if userID == recipientID {
		return models.DirectChat{}, ErrSelfChat
	}
	user1, user2 := SortedPair(userID, recipientID)
	filter := bson.M{"pair_key": user1 + ":" + user2}

	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":             uuid.NewString(),
		"participant_ids": []string{user1, user2},
		"is_active":       true,
		"created_at":      now,
		"updated_at":      now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc directChatDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// concurrent upsert on the same pair
		err = r.coll.FindOne(ctx, filter).Decode(&doc)
	}
	if err != nil {
		return models.DirectChat{}, err
	}
	return doc.DirectChat, nil
}

func (r *MongoChatRepo) GetDirectChat(ctx context.Context, chatID string) (models.DirectChat, error) {
	var doc directChatDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": chatID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DirectChat{}, ErrChatNotFound
	}
	if err != nil {
		return models.DirectChat{}, err
	}
	return doc.DirectChat, nil
}

func (r *MongoChatRepo) ListDirectChatsForUser(ctx context.Context, userID string) ([]models.DirectChat, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"participant_ids": userID, "is_active": true},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []directChatDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	chats := make([]models.DirectChat, 0, len(docs))
	for _, doc := range docs {
		chats = append(chats, doc.DirectChat)
	}
	return chats, nil
}

func (r *MongoChatRepo) SetDirectLastMessage(ctx context.Context, chatID, messageID string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{"$set": bson.M{
		"last_message_id": messageID,
		"updated_at":      time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}
