package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/metrics"
	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/repository"
	"github.com/iliyamo/onstream-api/internal/upstream"
)

// TitleStore is the `movies` cache collection.
type TitleStore interface {
	Get(ctx context.Context, tmdbID int) (model.CachedTitle, error)
	Upsert(ctx context.Context, t model.CachedTitle) error
	List(ctx context.Context, f repository.TitleFilter, now time.Time, page, size int) ([]model.CachedTitle, int64, error)
	Search(ctx context.Context, text string, now time.Time, page, size int) ([]model.CachedTitle, int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// StreamStore is the `streams` cache collection.
type StreamStore interface {
	Get(ctx context.Context, tmdbID int) (model.CachedStreamSet, error)
	Upsert(ctx context.Context, s model.CachedStreamSet) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// MetadataSource is the TMDB client.
type MetadataSource interface {
	Details(ctx context.Context, mediaType string, id int) (upstream.Item, error)
	Popular(ctx context.Context, mediaType string, page int) (upstream.ListPage, error)
	Trending(ctx context.Context) (upstream.ListPage, error)
	SearchMulti(ctx context.Context, query string, page int) (upstream.ListPage, error)
	Genres(ctx context.Context) ([]model.Genre, error)
	GenreNames(ctx context.Context) (map[int]string, error)
}

// StreamProvider yields playable sources for a resolved title.
type StreamProvider interface {
	Sources(ctx context.Context, t model.CachedTitle) (upstream.Streams, error)
}

// Resolver implements cache-aside reads over the title and stream caches.
// A fresh record is served without touching upstream. A missing or stale
// one is refetched, normalized and upserted with a new expiry. When the
// refetch fails and a stale record exists, the stale record is served.
//
// Concurrent misses for the same key inside this process share one
// upstream call. Across processes the last upsert wins.
type Resolver struct {
	titles    TitleStore
	streams   StreamStore
	meta      MetadataSource
	provider  StreamProvider
	titleTTL  time.Duration
	streamTTL time.Duration
	now       func() time.Time

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
	stale  atomic.Int64
}

func NewResolver(titles TitleStore, streams StreamStore, meta MetadataSource, provider StreamProvider, titleTTL, streamTTL time.Duration) *Resolver {
	if titleTTL <= 0 {
		titleTTL = 24 * time.Hour
	}
	if streamTTL <= 0 {
		streamTTL = time.Hour
	}
	return &Resolver{
		titles: titles, streams: streams, meta: meta, provider: provider,
		titleTTL: titleTTL, streamTTL: streamTTL,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// ResolveTitle returns the cached title for tmdbID, refreshing it from
// TMDB when missing or stale. hint ("", "movie" or "tv") picks which TMDB
// endpoint is asked first; the other one is tried when the first answers
// not found.
func (r *Resolver) ResolveTitle(ctx context.Context, tmdbID int, hint string) (model.CachedTitle, error) {
	if tmdbID <= 0 {
		return model.CachedTitle{}, invalidf("tmdb id must be a positive integer")
	}
	if hint != "" && hint != model.TypeMovie && hint != model.TypeTV {
		return model.CachedTitle{}, invalidf("type must be one of [movie tv]")
	}

	cached, err := r.titles.Get(ctx, tmdbID)
	haveCached := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.CachedTitle{}, fmt.Errorf("load title %d: %w", tmdbID, err)
	}
	if haveCached && cached.Fresh(r.now()) {
		r.record("title", "hit")
		return cached, nil
	}
	r.record("title", "miss")

	v, err, _ := r.group.Do("title:"+strconv.Itoa(tmdbID), func() (any, error) {
		return r.refreshTitle(context.WithoutCancel(ctx), tmdbID, hint)
	})
	if err != nil {
		if haveCached && !errors.Is(err, ErrNotFound) {
			r.serveStale(ctx, "title", tmdbID, err)
			return cached, nil
		}
		return model.CachedTitle{}, err
	}
	return v.(model.CachedTitle), nil
}

func (r *Resolver) refreshTitle(ctx context.Context, tmdbID int, hint string) (model.CachedTitle, error) {
	order := []string{model.TypeMovie, model.TypeTV}
	if hint == model.TypeTV {
		order = []string{model.TypeTV, model.TypeMovie}
	}

	var (
		item     upstream.Item
		itemType string
		err      error
	)
	for _, mt := range order {
		item, err = r.meta.Details(ctx, mt, tmdbID)
		if err == nil {
			itemType = mt
			break
		}
		if !errors.Is(err, upstream.ErrNotFound) {
			break
		}
	}
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		return model.CachedTitle{}, fmt.Errorf("title %d: %w", tmdbID, ErrNotFound)
	case errors.Is(err, upstream.ErrUnmappable):
		return model.CachedTitle{}, err
	case err != nil:
		return model.CachedTitle{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	rec, err := upstream.Normalize(item, itemType, nil, r.now(), r.titleTTL)
	if err != nil {
		return model.CachedTitle{}, err
	}
	if err := r.titles.Upsert(ctx, rec); err != nil {
		return model.CachedTitle{}, fmt.Errorf("store title %d: %w", tmdbID, err)
	}
	return rec, nil
}

// ResolveStreams returns the cached stream set for tmdbID, refreshing it
// when missing or stale. A refresh resolves the title first, through the
// title cache, so the provider can search by name and year.
func (r *Resolver) ResolveStreams(ctx context.Context, tmdbID int) (model.CachedStreamSet, error) {
	if tmdbID <= 0 {
		return model.CachedStreamSet{}, invalidf("tmdb id must be a positive integer")
	}

	cached, err := r.streams.Get(ctx, tmdbID)
	haveCached := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return model.CachedStreamSet{}, fmt.Errorf("load streams %d: %w", tmdbID, err)
	}
	if haveCached && cached.Fresh(r.now()) {
		r.record("streams", "hit")
		return cached, nil
	}
	r.record("streams", "miss")

	v, err, _ := r.group.Do("streams:"+strconv.Itoa(tmdbID), func() (any, error) {
		return r.refreshStreams(context.WithoutCancel(ctx), tmdbID)
	})
	if err != nil {
		if haveCached && !errors.Is(err, ErrNotFound) {
			r.serveStale(ctx, "streams", tmdbID, err)
			return cached, nil
		}
		return model.CachedStreamSet{}, err
	}
	return v.(model.CachedStreamSet), nil
}

func (r *Resolver) refreshStreams(ctx context.Context, tmdbID int) (model.CachedStreamSet, error) {
	title, err := r.ResolveTitle(ctx, tmdbID, "")
	if err != nil {
		return model.CachedStreamSet{}, err
	}
	found, err := r.provider.Sources(ctx, title)
	if err != nil {
		return model.CachedStreamSet{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	now := r.now()
	set := model.CachedStreamSet{
		TMDBID:    tmdbID,
		Sources:   found.Sources,
		Subtitles: found.Subtitles,
		CachedAt:  now,
		ExpiresAt: now.Add(r.streamTTL),
	}
	if set.Subtitles == nil {
		set.Subtitles = []model.Subtitle{}
	}
	if err := r.streams.Upsert(ctx, set); err != nil {
		return model.CachedStreamSet{}, fmt.Errorf("store streams %d: %w", tmdbID, err)
	}
	return set, nil
}

func (r *Resolver) serveStale(ctx context.Context, kind string, tmdbID int, cause error) {
	r.stale.Add(1)
	metrics.ResolveTotal.WithLabelValues(kind, "stale").Inc()
	logging.Ctx(ctx).Warn().Err(cause).Str("kind", kind).Int("tmdb_id", tmdbID).Msg("refresh failed; serving stale record")
}

func (r *Resolver) record(kind, result string) {
	if result == "hit" {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	metrics.ResolveTotal.WithLabelValues(kind, result).Inc()
}

// ResolverStats are the process-local cache counters.
type ResolverStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Stale   int64   `json:"stale_served"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns the counters since process start.
func (r *Resolver) Stats() ResolverStats {
	s := ResolverStats{Hits: r.hits.Load(), Misses: r.misses.Load(), Stale: r.stale.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
