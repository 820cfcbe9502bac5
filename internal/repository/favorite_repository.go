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

// FavoriteRepo manages the `favorites` collection. The unique
// (username, tmdb_id) index turns a repeated add into ErrDuplicate.
type FavoriteRepo struct{ coll *mongo.Collection }

func NewFavoriteRepo(db *mongo.Database) *FavoriteRepo {
	return &FavoriteRepo{coll: db.Collection(database.Favorites)}
}

func (r *FavoriteRepo) Add(ctx context.Context, f *model.Favorite) error {
	res, err := r.coll.InsertOne(ctx, f)
	if err != nil {
		return translate(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		f.ID = id
	}
	return nil
}

// Remove deletes the favorite; ErrNotFound when there was none.
func (r *FavoriteRepo) Remove(ctx context.Context, username string, tmdbID int) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"username": username, "tmdb_id": tmdbID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of the user's favorites, newest first.
func (r *FavoriteRepo) List(ctx context.Context, username string, page, size int) ([]model.Favorite, int64, error) {
	q := bson.M{"username": username}
	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	skip, limit := skipLimit(page, size)
	opts := options.Find().SetSort(bson.D{{Key: "added_at", Value: -1}, {Key: "_id", Value: -1}}).SetSkip(skip).SetLimit(limit)
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	var out []model.Favorite
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
