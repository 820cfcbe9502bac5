package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Favorite is a title a user saved.  (Username, TMDBID) is unique.
type Favorite struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username   string             `bson:"username" json:"-"`
	TMDBID     int                `bson:"tmdb_id" json:"tmdb_id"`
	Title      string             `bson:"title" json:"title"`
	PosterPath *string            `bson:"poster_path" json:"poster_path"`
	Type       string             `bson:"type" json:"type"`
	AddedAt    time.Time          `bson:"added_at" json:"added_at"`
}

// WatchHistoryEntry records one viewing event.  Entries accumulate: the
// current progress for a title is the most recent entry of the pair.
type WatchHistoryEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username   string             `bson:"username" json:"-"`
	TMDBID     int                `bson:"tmdb_id" json:"tmdb_id"`
	Title      string             `bson:"title" json:"title"`
	PosterPath *string            `bson:"poster_path" json:"poster_path"`
	Type       string             `bson:"type" json:"type"`
	Progress   float64            `bson:"progress" json:"progress"`
	WatchedAt  time.Time          `bson:"watched_at" json:"watched_at"`
}
