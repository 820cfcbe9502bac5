package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Title types accepted by the `movies` collection validator.
const (
	TypeMovie = "movie"
	TypeTV    = "tv"
)

// Genre is a TMDB genre reference.
type Genre struct {
	ID   int    `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// CachedTitle is a movie or TV show cached in the `movies` collection.
// TMDBID is unique.  The record is stale once the current time is past
// ExpiresAt.
type CachedTitle struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TMDBID           int                `bson:"tmdb_id" json:"tmdb_id" validate:"gt=0"`
	Title            string             `bson:"title" json:"title" validate:"required"`
	Type             string             `bson:"type" json:"type" validate:"oneof=movie tv"`
	Overview         string             `bson:"overview" json:"overview"`
	PosterPath       *string            `bson:"poster_path" json:"poster_path"`
	BackdropPath     *string            `bson:"backdrop_path" json:"backdrop_path"`
	ReleaseDate      *string            `bson:"release_date" json:"release_date"`
	FirstAirDate     *string            `bson:"first_air_date" json:"first_air_date"`
	Year             *string            `bson:"year" json:"year"`
	Genres           []Genre            `bson:"genres" json:"genres"`
	VoteAverage      float64            `bson:"vote_average" json:"vote_average"`
	VoteCount        int                `bson:"vote_count" json:"vote_count"`
	Runtime          *int               `bson:"runtime" json:"runtime"`
	NumberOfSeasons  *int               `bson:"number_of_seasons" json:"number_of_seasons"`
	NumberOfEpisodes *int               `bson:"number_of_episodes" json:"number_of_episodes"`
	Adult            bool               `bson:"adult" json:"adult"`
	OriginalLanguage string             `bson:"original_language" json:"original_language"`
	Popularity       float64            `bson:"popularity" json:"popularity"`
	CachedAt         time.Time          `bson:"cached_at" json:"cached_at"`
	ExpiresAt        time.Time          `bson:"expires_at" json:"expires_at"`
}

// Fresh reports whether the record may be served without asking upstream.
func (t CachedTitle) Fresh(now time.Time) bool {
	return !now.After(t.ExpiresAt)
}

// Page is the paginated listing shape shared by catalog, favorites and
// watch-history responses.
type Page[T any] struct {
	Query        string `json:"query,omitempty"`
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int64  `json:"total_results"`
	Results      []T    `json:"results"`
}

// NewPage computes TotalPages from total and the page size.
func NewPage[T any](page, size int, total int64, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	pages := 0
	if size > 0 {
		pages = int((total + int64(size) - 1) / int64(size))
	}
	return Page[T]{Page: page, TotalPages: pages, TotalResults: total, Results: results}
}
