package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/onstream-api/internal/logging"
)

// Collection names.
const (
	Users        = "users"
	Movies       = "movies"
	Streams      = "streams"
	Favorites    = "favorites"
	WatchHistory = "watch_history"
)

// namespaceExists is the server error code returned by create on an existing collection.
const namespaceExists = 48

// EmailPattern is the email format enforced by the users validator.
const EmailPattern = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`

// Validators returns the $jsonSchema document validator of every collection.
func Validators() map[string]bson.M {
	date := bson.M{"bsonType": "date"}
	intType := bson.M{"bsonType": bson.A{"int", "long"}}
	str := bson.M{"bsonType": "string"}
	return map[string]bson.M{
		Users: schema([]string{"username", "email", "password_hash", "is_admin", "created_at"}, bson.M{
			"username":      bson.M{"bsonType": "string", "minLength": 3, "maxLength": 50},
			"email":         bson.M{"bsonType": "string", "pattern": EmailPattern},
			"password_hash": str,
			"is_admin":      bson.M{"bsonType": "bool"},
			"created_at":    date,
			"last_login":    bson.M{"bsonType": bson.A{"date", "null"}},
		}),
		Movies: schema([]string{"tmdb_id", "title", "type", "cached_at", "expires_at"}, bson.M{
			"tmdb_id":    intType,
			"title":      bson.M{"bsonType": "string", "minLength": 1},
			"type":       bson.M{"bsonType": "string", "enum": bson.A{"movie", "tv"}},
			"cached_at":  date,
			"expires_at": date,
		}),
		Streams: schema([]string{"tmdb_id", "sources", "cached_at", "expires_at"}, bson.M{
			"tmdb_id":    intType,
			"sources":    bson.M{"bsonType": "array"},
			"cached_at":  date,
			"expires_at": date,
		}),
		Favorites: schema([]string{"username", "tmdb_id", "title", "added_at"}, bson.M{
			"username": str,
			"tmdb_id":  intType,
			"title":    str,
			"added_at": date,
		}),
		WatchHistory: schema([]string{"username", "tmdb_id", "title", "watched_at"}, bson.M{
			"username":   str,
			"tmdb_id":    intType,
			"title":      str,
			"watched_at": date,
			"progress":   bson.M{"bsonType": bson.A{"double", "int"}, "minimum": 0, "maximum": 1},
		}),
	}
}

func schema(required []string, props bson.M) bson.M {
	return bson.M{"$jsonSchema": bson.M{
		"bsonType":   "object",
		"required":   required,
		"properties": props,
	}}
}

// Indexes returns the index set of every collection.  Unique keys define
// the identity of users, cached titles and favorites.
func Indexes() map[string][]mongo.IndexModel {
	asc := func(keys ...string) bson.D {
		d := bson.D{}
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: 1})
		}
		return d
	}
	unique := options.Index().SetUnique(true)
	return map[string][]mongo.IndexModel{
		Users: {
			{Keys: asc("username"), Options: unique},
			{Keys: asc("email"), Options: unique},
		},
		Movies: {
			{Keys: asc("tmdb_id"), Options: unique},
			{Keys: asc("type")},
			{Keys: asc("expires_at")},
			{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "overview", Value: "text"}}},
		},
		Streams: {
			{Keys: asc("tmdb_id")},
			{Keys: asc("expires_at")},
		},
		Favorites: {
			{Keys: asc("username", "tmdb_id"), Options: unique},
			{Keys: asc("username")},
		},
		WatchHistory: {
			{Keys: asc("username", "tmdb_id")},
			{Keys: asc("username")},
		},
	}
}

// EnsureSchema creates every collection with its validator (or updates the
// validator of an existing one through collMod) and then creates the
// indexes.  Index creation is idempotent for identical specs.
func EnsureSchema(ctx context.Context, db *mongo.Database) error {
	for name, validator := range Validators() {
		err := db.CreateCollection(ctx, name, options.CreateCollection().SetValidator(validator))
		var cmdErr mongo.CommandError
		switch {
		case err == nil:
		case errors.As(err, &cmdErr) && cmdErr.Code == namespaceExists:
			cmd := bson.D{{Key: "collMod", Value: name}, {Key: "validator", Value: validator}}
			if err := db.RunCommand(ctx, cmd).Err(); err != nil {
				return fmt.Errorf("update validator %s: %w", name, err)
			}
		default:
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	for name, models := range Indexes() {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes %s: %w", name, err)
		}
	}
	logging.Info().Str("db", db.Name()).Msg("database schema ready")
	return nil
}
