package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/onstream-api/internal/database"
	"github.com/iliyamo/onstream-api/internal/model"
)

// StreamRepo reads and writes the `streams` cache collection. tmdb_id is
// indexed but not unique, so reads take the newest document.
type StreamRepo struct{ coll *mongo.Collection }

func NewStreamRepo(db *mongo.Database) *StreamRepo {
	return &StreamRepo{coll: db.Collection(database.Streams)}
}

func (r *StreamRepo) Get(ctx context.Context, tmdbID int) (model.CachedStreamSet, error) {
	var s model.CachedStreamSet
	opts := options.FindOne().SetSort(bson.D{{Key: "cached_at", Value: -1}})
	err := r.coll.FindOne(ctx, bson.M{"tmdb_id": tmdbID}, opts).Decode(&s)
	return s, translate(err)
}

// Upsert replaces the set for s.TMDBID, inserting it when absent.
func (r *StreamRepo) Upsert(ctx context.Context, s model.CachedStreamSet) error {
	s.ID = primitive.NilObjectID
	if s.Subtitles == nil {
		s.Subtitles = []model.Subtitle{}
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"tmdb_id": s.TMDBID}, s, options.Replace().SetUpsert(true))
	return translate(err)
}

func (r *StreamRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *StreamRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}
