package repositories

import (
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store bundles the repositories of one backend.
type Store struct {
	Chats    ChatRepository
	Groups   GroupRepository
	Messages MessageRepository
	Users    UserRepository
}

// NewPostgresStore wires the sqlx repositories.
func NewPostgresStore(db *sqlx.DB) Store {
	return Store{
		Chats:    NewChatRepo(db),
		Groups:   NewGroupRepo(db),
		Messages: NewMessageRepo(db),
		Users:    NewUserRepo(db),
	}
}

// NewMongoStore wires the document repositories.
func NewMongoStore(mdb *mongo.Database) Store {
	return Store{
		Chats:    NewMongoChatRepo(mdb),
		Groups:   NewMongoGroupRepo(mdb),
		Messages: NewMongoMessageRepo(mdb),
		Users:    NewMongoUserRepo(mdb),
	}
}
