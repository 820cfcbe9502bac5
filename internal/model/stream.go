package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StreamSource is one provider-specific playback descriptor, usually an
// embeddable player URL.
type StreamSource struct {
	URL     string            `bson:"url" json:"url" validate:"required,url"`
	Quality string            `bson:"quality" json:"quality"`
	Server  string            `bson:"server" json:"server"`
	Type    string            `bson:"type" json:"type"`
	Headers map[string]string `bson:"headers,omitempty" json:"headers,omitempty"`
}

// Subtitle is a caption track offered alongside the sources.
type Subtitle struct {
	URL  string `bson:"url" json:"url"`
	Lang string `bson:"lang" json:"lang"`
}

// CachedStreamSet is a document of the `streams` collection.  TMDBID is a
// lookup key but not unique; Sources keeps the provider order.
type CachedStreamSet struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TMDBID    int                `bson:"tmdb_id" json:"tmdb_id"`
	Sources   []StreamSource     `bson:"sources" json:"sources"`
	Subtitles []Subtitle         `bson:"subtitles" json:"subtitles"`
	CachedAt  time.Time          `bson:"cached_at" json:"cached_at"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expires_at"`
}

// Fresh reports whether the set may be served without asking upstream.
func (s CachedStreamSet) Fresh(now time.Time) bool {
	return !now.After(s.ExpiresAt)
}
