package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/onstream-api/internal/database"
	"github.com/iliyamo/onstream-api/internal/model"
)

// HistoryRepo manages the `watch_history` collection. Entries are never
// merged: every Add inserts a new document.
type HistoryRepo struct{ coll *mongo.Collection }

func NewHistoryRepo(db *mongo.Database) *HistoryRepo {
	return &HistoryRepo{coll: db.Collection(database.WatchHistory)}
}

var newestFirst = bson.D{{Key: "watched_at", Value: -1}, {Key: "_id", Value: -1}}

func (r *HistoryRepo) Add(ctx context.Context, e *model.WatchHistoryEntry) error {
	res, err := r.coll.InsertOne(ctx, e)
	if err != nil {
		return translate(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		e.ID = id
	}
	return nil
}

func (r *HistoryRepo) List(ctx context.Context, username string, page, size int) ([]model.WatchHistoryEntry, int64, error) {
	q := bson.M{"username": username}
	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	skip, limit := skipLimit(page, size)
	cur, err := r.coll.Find(ctx, q, options.Find().SetSort(newestFirst).SetSkip(skip).SetLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	var out []model.WatchHistoryEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Latest returns the most recent entry of the pair.
func (r *HistoryRepo) Latest(ctx context.Context, username string, tmdbID int) (model.WatchHistoryEntry, error) {
	var e model.WatchHistoryEntry
	err := r.coll.FindOne(ctx, bson.M{"username": username, "tmdb_id": tmdbID}, options.FindOne().SetSort(newestFirst)).Decode(&e)
	return e, translate(err)
}

// RemoveAll deletes every entry of the pair and returns how many went.
// ErrNotFound when there were none.
func (r *HistoryRepo) RemoveAll(ctx context.Context, username string, tmdbID int) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"username": username, "tmdb_id": tmdbID})
	if err != nil {
		return 0, err
	}
	if res.DeletedCount == 0 {
		return 0, ErrNotFound
	}
	return res.DeletedCount, nil
}
