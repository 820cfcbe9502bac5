package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/onstream-api/internal/logging"
	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/repository"
	"github.com/iliyamo/onstream-api/internal/upstream"
	"github.com/iliyamo/onstream-api/internal/validation"
)

const (
	// PageSize is the page length of every paginated listing.
	PageSize = 20
	// MaxPage bounds every page parameter so the skip offset stays small.
	MaxPage = 1000
	// listSeedThreshold: a catalog page shorter than this pulls the popular list from TMDB.
	listSeedThreshold = 10
	// searchSeedThreshold: fewer cached hits than this triggers an upstream search.
	searchSeedThreshold = 5
)

// ListQuery holds the /movies query parameters.
type ListQuery struct {
	Page  int    `query:"page" json:"page" validate:"gte=1,lte=1000"`
	Type  string `query:"type" json:"type" validate:"omitempty,oneof=movie tv"`
	Genre string `query:"genre" json:"genre" validate:"max=50"`
	Year  string `query:"year" json:"year" validate:"omitempty,len=4,numeric"`
}

// SearchQuery holds the /search query parameters.
type SearchQuery struct {
	Q    string `query:"q" json:"q" validate:"min=2,max=100"`
	Page int    `query:"page" json:"page" validate:"gte=1,lte=1000"`
}

// Catalog serves browsing endpoints from the title cache and seeds the
// cache from TMDB lists when it runs thin.
type Catalog struct {
	titles TitleStore
	meta   MetadataSource
	ttl    time.Duration
	now    func() time.Time
}

func NewCatalog(titles TitleStore, meta MetadataSource, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Catalog{titles: titles, meta: meta, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// List returns one page of cached titles, most popular first.
func (c *Catalog) List(ctx context.Context, q ListQuery) (model.Page[model.CachedTitle], error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if err := validation.Struct(q); err != nil {
		return model.Page[model.CachedTitle]{}, invalid(err)
	}
	filter := repository.TitleFilter{Type: q.Type, Genre: strings.TrimSpace(q.Genre), Year: q.Year}

	results, total, err := c.titles.List(ctx, filter, c.now(), q.Page, PageSize)
	if err != nil {
		return model.Page[model.CachedTitle]{}, err
	}
	if len(results) < listSeedThreshold {
		listType := q.Type
		if listType == "" {
			listType = model.TypeMovie
		}
		if _, n := c.seed(ctx, listType, func(ctx context.Context) (upstream.ListPage, error) {
			return c.meta.Popular(ctx, listType, q.Page)
		}); n > 0 {
			results, total, err = c.titles.List(ctx, filter, c.now(), q.Page, PageSize)
			if err != nil {
				return model.Page[model.CachedTitle]{}, err
			}
		}
	}
	return model.NewPage(q.Page, PageSize, total, results), nil
}

// Search runs a text search over cached titles. Fewer than five hits
// triggers a TMDB multi search whose movie and TV results are cached;
// when the cache still has nothing the upstream results are returned as is.
func (c *Catalog) Search(ctx context.Context, q SearchQuery) (model.Page[model.CachedTitle], error) {
	q.Q = strings.TrimSpace(q.Q)
	if q.Page == 0 {
		q.Page = 1
	}
	if err := validation.Struct(q); err != nil {
		return model.Page[model.CachedTitle]{}, invalid(err)
	}

	results, total, err := c.titles.Search(ctx, q.Q, c.now(), q.Page, PageSize)
	if err != nil {
		return model.Page[model.CachedTitle]{}, err
	}
	if len(results) < searchSeedThreshold {
		direct, n := c.seed(ctx, "", func(ctx context.Context) (upstream.ListPage, error) {
			return c.meta.SearchMulti(ctx, q.Q, q.Page)
		})
		if n > 0 {
			results, total, err = c.titles.Search(ctx, q.Q, c.now(), q.Page, PageSize)
			if err != nil {
				return model.Page[model.CachedTitle]{}, err
			}
		}
		if len(results) == 0 && len(direct) > 0 {
			results, total = direct, int64(len(direct))
		}
	}
	p := model.NewPage(q.Page, PageSize, total, results)
	p.Query = q.Q
	return p, nil
}

// Trending returns TMDB's weekly trending movies and shows, caching each.
func (c *Catalog) Trending(ctx context.Context) ([]model.CachedTitle, error) {
	lp, err := c.meta.Trending(ctx)
	if err != nil {
		return nil, upstreamErr(err)
	}
	recs := upstream.NormalizeList(lp.Results, "", c.genreNames(ctx), c.now(), c.ttl)
	c.store(ctx, recs)
	return recs, nil
}

// Genres returns the merged movie and TV genre list.
func (c *Catalog) Genres(ctx context.Context) ([]model.Genre, error) {
	gs, err := c.meta.Genres(ctx)
	if err != nil {
		return nil, upstreamErr(err)
	}
	return gs, nil
}

// seed fetches a list, normalizes and stores it. It returns the normalized
// records and how many were stored. Upstream failures are logged, not
// returned.
func (c *Catalog) seed(ctx context.Context, listType string, fetch func(context.Context) (upstream.ListPage, error)) ([]model.CachedTitle, int) {
	lp, err := fetch(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("catalog seed failed; serving cached results only")
		return nil, 0
	}
	recs := upstream.NormalizeList(lp.Results, listType, c.genreNames(ctx), c.now(), c.ttl)
	return recs, c.store(ctx, recs)
}

func (c *Catalog) store(ctx context.Context, recs []model.CachedTitle) int {
	stored := 0
	for _, rec := range recs {
		if err := c.titles.Upsert(ctx, rec); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("tmdb_id", rec.TMDBID).Msg("caching list result failed")
			continue
		}
		stored++
	}
	return stored
}

// genreNames resolves genre ids on list results. Failure only costs the
// genre names.
func (c *Catalog) genreNames(ctx context.Context) map[int]string {
	names, err := c.meta.GenreNames(ctx)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("genre names unavailable")
		return nil
	}
	return names
}

func upstreamErr(err error) error {
	if upstream.IsUnmappable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}
