package upstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/onstream-api/internal/model"
)

func strp(s string) *string { return &s }

func TestNormalizeMovie(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	it := Item{
		ID: 603, Title: "The Matrix", Overview: "A hacker learns the truth.",
		PosterPath: strp("/p.jpg"), BackdropPath: strp("/b.jpg"), ReleaseDate: strp("1999-03-30"),
		Genres: []model.Genre{{ID: 28, Name: "Action"}}, VoteAverage: 8.2, Popularity: 70,
	}

	rec, err := Normalize(it, model.TypeMovie, nil, now, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 603, rec.TMDBID)
	assert.Equal(t, model.TypeMovie, rec.Type)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/p.jpg", *rec.PosterPath)
	assert.Equal(t, "https://image.tmdb.org/t/p/w1280/b.jpg", *rec.BackdropPath)
	assert.Equal(t, "1999", *rec.Year)
	assert.Equal(t, "en", rec.OriginalLanguage)
	assert.Equal(t, now, rec.CachedAt)
	assert.Equal(t, now.Add(24*time.Hour), rec.ExpiresAt)
}

func TestNormalizeTVFromList(t *testing.T) {
	now := time.Now()
	it := Item{ID: 1399, Name: "Game of Thrones", FirstAirDate: strp("2011-04-17"), GenreIDs: []int{18, 999}}

	rec, err := Normalize(it, "", map[int]string{18: "Drama"}, now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, model.TypeTV, rec.Type)
	assert.Equal(t, "Game of Thrones", rec.Title)
	assert.Equal(t, "2011-04-17", *rec.ReleaseDate, "release date falls back to first air date")
	assert.Equal(t, []model.Genre{{ID: 18, Name: "Drama"}}, rec.Genres)
	assert.Nil(t, rec.PosterPath)
}

func TestNormalizeEndpointTypeWins(t *testing.T) {
	it := Item{ID: 5, Title: "Odd", MediaType: model.TypeTV, FirstAirDate: strp("2000-01-01")}
	rec, err := Normalize(it, model.TypeMovie, nil, time.Now(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, model.TypeMovie, rec.Type)
}

func TestNormalizeUnmappable(t *testing.T) {
	_, err := Normalize(Item{ID: 0, Title: "x"}, model.TypeMovie, nil, time.Now(), time.Hour)
	assert.ErrorIs(t, err, ErrUnmappable)

	_, err = Normalize(Item{ID: 7}, model.TypeMovie, nil, time.Now(), time.Hour)
	assert.True(t, IsUnmappable(err))
}

func TestNormalizeListSkipsPeopleAndBadRows(t *testing.T) {
	items := []Item{
		{ID: 1, Title: "Movie", MediaType: model.TypeMovie},
		{ID: 2, Name: "Person", MediaType: "person"},
		{ID: 3, Name: "Show", MediaType: model.TypeTV},
		{ID: 0, Title: "Broken", MediaType: model.TypeMovie},
	}
	out := NormalizeList(items, "", nil, time.Now(), time.Hour)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].TMDBID)
	assert.Equal(t, model.TypeTV, out[1].Type)
}
