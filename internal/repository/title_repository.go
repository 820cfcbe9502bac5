package repository

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/onstream-api/internal/database"
	"github.com/iliyamo/onstream-api/internal/model"
)

// TitleFilter narrows catalog listings. Zero values match everything.
type TitleFilter struct {
	Type  string // movie | tv
	Genre string // genre name, case-insensitive
	Year  string // prefix of release_date or first_air_date
}

// TitleRepo reads and writes the `movies` cache collection.
type TitleRepo struct{ coll *mongo.Collection }

func NewTitleRepo(db *mongo.Database) *TitleRepo {
	return &TitleRepo{coll: db.Collection(database.Movies)}
}

// Get returns the cached record for tmdbID, fresh or stale.
func (r *TitleRepo) Get(ctx context.Context, tmdbID int) (model.CachedTitle, error) {
	var t model.CachedTitle
	err := r.coll.FindOne(ctx, bson.M{"tmdb_id": tmdbID}).Decode(&t)
	return t, translate(err)
}

// Upsert replaces the record keyed by tmdb_id, inserting it when absent.
// The unique index on tmdb_id keeps a single document per title.
func (r *TitleRepo) Upsert(ctx context.Context, t model.CachedTitle) error {
	t.ID = primitive.NilObjectID
	_, err := r.coll.ReplaceOne(ctx, bson.M{"tmdb_id": t.TMDBID}, t, options.Replace().SetUpsert(true))
	return translate(err)
}

// List returns unexpired titles matching f ordered by popularity desc.
func (r *TitleRepo) List(ctx context.Context, f TitleFilter, now time.Time, page, size int) ([]model.CachedTitle, int64, error) {
	q := bson.M{"expires_at": bson.M{"$gt": now}}
	if f.Type != "" {
		q["type"] = f.Type
	}
	if f.Genre != "" {
		q["genres.name"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Genre) + "$", "$options": "i"}
	}
	if f.Year != "" {
		prefix := bson.M{"$regex": "^" + regexp.QuoteMeta(f.Year)}
		q["$or"] = bson.A{bson.M{"release_date": prefix}, bson.M{"first_air_date": prefix}}
	}
	skip, limit := skipLimit(page, size)
	opts := options.Find().
		SetSort(bson.D{{Key: "popularity", Value: -1}, {Key: "tmdb_id", Value: 1}}).
		SetSkip(skip).SetLimit(limit)
	return r.find(ctx, q, opts)
}

// Search runs a text search over title and overview among unexpired titles,
// best matches first.
func (r *TitleRepo) Search(ctx context.Context, text string, now time.Time, page, size int) ([]model.CachedTitle, int64, error) {
	q := bson.M{"$text": bson.M{"$search": text}, "expires_at": bson.M{"$gt": now}}
	skip, limit := skipLimit(page, size)
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}).
		SetSkip(skip).SetLimit(limit)
	return r.find(ctx, q, opts)
}

func (r *TitleRepo) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]model.CachedTitle, int64, error) {
	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	var out []model.CachedTitle
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// DeleteExpired removes records whose expires_at is before now.
func (r *TitleRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Count returns the number of cached titles.
func (r *TitleRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}
