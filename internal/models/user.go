package models

// RoleResearcher is the role allowed to create groups and listed as chat partner.
const RoleResearcher = "researcher"

// User is owned by the identity subsystem; the chat core only reads it.
type User struct {
	ID        string `db:"id" bson:"_id" json:"id"`
	Name      string `db:"name" bson:"name" json:"name"`
	Email     string `db:"email" bson:"email" json:"email"`
	AvatarURL string `db:"photo" bson:"photo" json:"photo"`
	Role      string `db:"role" bson:"role" json:"role"`
}
