package model

const UserTableName = "users"

// UserProfile is the display slice of a user record used to enrich chat
// payloads.
type UserProfile struct {
	ID     string `bson:"_id" json:"id"`
	Name   string `bson:"name" json:"name"`
	Avatar string `bson:"profilePhoto,omitempty" json:"avatar"`
}

// BareProfile is what clients get when a profile cannot be loaded.
func BareProfile(id string) UserProfile {
	return UserProfile{ID: id}
}
