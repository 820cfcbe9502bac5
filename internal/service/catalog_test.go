package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/onstream-api/internal/model"
	"github.com/iliyamo/onstream-api/internal/upstream"
)

func newTestCatalog(titles *fakeTitles, meta *fakeMeta) *Catalog {
	c := NewCatalog(titles, meta, 24*time.Hour)
	c.now = func() time.Time { return testNow }
	return c
}

func popularItems(n int) []upstream.Item {
	out := make([]upstream.Item, 0, n)
	for i := 1; i <= n; i++ {
		d := "2020-01-01"
		out = append(out, upstream.Item{ID: 1000 + i, Title: fmt.Sprintf("Movie %d", i), ReleaseDate: &d,
			Popularity: float64(100 - i), GenreIDs: []int{28}})
	}
	return out
}

func TestCatalogListSeedsThinCache(t *testing.T) {
	titles := newFakeTitles()
	meta := newFakeMeta()
	meta.popular = popularItems(25)
	meta.genres = []model.Genre{{ID: 28, Name: "Action"}}
	c := newTestCatalog(titles, meta)

	page, err := c.List(context.Background(), ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.EqualValues(t, 25, page.TotalResults)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Results, PageSize)
	assert.Equal(t, "Movie 1", page.Results[0].Title, "most popular first")
	assert.Equal(t, []string{"movie/popular"}, meta.calls)

	page, err = c.List(context.Background(), ListQuery{Page: 1, Genre: "action"})
	require.NoError(t, err)
	assert.Len(t, page.Results, PageSize)
	assert.Len(t, meta.calls, 1, "a full page needs no seeding")
}

func TestCatalogListTVSeedsTVPopular(t *testing.T) {
	meta := newFakeMeta()
	c := newTestCatalog(newFakeTitles(), meta)

	page, err := c.List(context.Background(), ListQuery{Type: model.TypeTV})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.NotNil(t, page.Results)
	assert.Equal(t, []string{"tv/popular"}, meta.calls)
}

func TestCatalogListKeepsCachedResultsWhenUpstreamDown(t *testing.T) {
	titles := newFakeTitles(cachedMatrix(testNow.Add(time.Hour)))
	meta := newFakeMeta()
	meta.err = upstream.ErrUnavailable
	c := newTestCatalog(titles, meta)

	page, err := c.List(context.Background(), ListQuery{Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Results, 1)
}

func TestCatalogListValidation(t *testing.T) {
	c := newTestCatalog(newFakeTitles(), newFakeMeta())
	for _, q := range []ListQuery{{Page: -1}, {Page: MaxPage + 1}, {Page: math.MaxInt / 2}, {Type: "anime"}, {Year: "99"}, {Year: "abcd"}} {
		_, err := c.List(context.Background(), q)
		assert.ErrorIs(t, err, ErrValidation, "%+v", q)
	}
}

func TestCatalogSearchSeedsFromUpstream(t *testing.T) {
	titles := newFakeTitles()
	meta := newFakeMeta()
	d := "1999-03-30"
	meta.search = []upstream.Item{
		{ID: 603, Title: "The Matrix", MediaType: model.TypeMovie, ReleaseDate: &d},
		{ID: 6384, Name: "Keanu Reeves", MediaType: "person"},
	}
	c := newTestCatalog(titles, meta)

	page, err := c.Search(context.Background(), SearchQuery{Q: "  matrix "})
	require.NoError(t, err)
	assert.Equal(t, "matrix", page.Query)
	require.Len(t, page.Results, 1)
	assert.Equal(t, 603, page.Results[0].TMDBID)
	n, _ := titles.Count(context.Background())
	assert.EqualValues(t, 1, n, "person results are not cached")
}

func TestCatalogSearchReturnsUpstreamResultsDirectly(t *testing.T) {
	meta := newFakeMeta()
	meta.search = []upstream.Item{{ID: 11, Title: "Star Wars", MediaType: model.TypeMovie}}
	c := newTestCatalog(newFakeTitles(), meta)

	// the cached text search cannot match "sw", the upstream search did
	page, err := c.Search(context.Background(), SearchQuery{Q: "sw"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Star Wars", page.Results[0].Title)
}

func TestCatalogSearchValidation(t *testing.T) {
	c := newTestCatalog(newFakeTitles(), newFakeMeta())
	_, err := c.Search(context.Background(), SearchQuery{Q: "x"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.Search(context.Background(), SearchQuery{Q: "matrix", Page: MaxPage + 1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalogTrendingAndGenres(t *testing.T) {
	titles := newFakeTitles()
	meta := newFakeMeta()
	meta.trend = []upstream.Item{
		{ID: 1, Title: "A", MediaType: model.TypeMovie},
		{ID: 2, Name: "B", MediaType: model.TypeTV},
		{ID: 3, Name: "C", MediaType: "person"},
	}
	meta.genres = []model.Genre{{ID: 28, Name: "Action"}}
	c := newTestCatalog(titles, meta)

	recs, err := c.Trending(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 2, titles.upserts)

	gs, err := c.Genres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, meta.genres, gs)

	meta.err = upstream.ErrUnavailable
	_, err = c.Trending(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	_, err = c.Genres(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}
