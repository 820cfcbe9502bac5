package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account document in the `users` collection.
// Username and Email are each covered by a unique index.  The password
// hash never leaves the service: it is excluded from JSON output.
//
// Fields:
//  ID           – document id.
//  Username     – unique login name, 3–50 characters.
//  Email        – unique email address.
//  PasswordHash – bcrypt hash of the password.
//  IsAdmin      – grants access to the /admin routes.
//  CreatedAt    – registration timestamp.
//  LastLogin    – last successful login; nil until the first one.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	IsAdmin      bool               `bson:"is_admin" json:"is_admin"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	LastLogin    *time.Time         `bson:"last_login" json:"last_login"`
}

// Identity is the caller resolved from a verified bearer token.  It is
// built from token claims alone, without a database read.
type Identity struct {
	Username string
	IsAdmin  bool
}
